package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sensorable/detconv"
)

// Environment variables overriding the job file.
const (
	envDownload    = "DETCONV_DOWNLOAD"
	envHTTPTimeout = "DETCONV_HTTP_TIMEOUT"
)

// job describes a conversion. It is read from an optional YAML file, then overridden by the
// environment and finally by command line flags.
type job struct {
	From        string        `yaml:"from"`
	To          string        `yaml:"to"`
	Input       location      `yaml:"input"`
	Output      location      `yaml:"output"`
	Download    bool          `yaml:"download"`
	HTTPTimeout time.Duration `yaml:"http_timeout"`
	Shards      int           `yaml:"shards"`
	Info        info          `yaml:"info"`
}

type location struct {
	Path   string `yaml:"path"`
	Names  string `yaml:"names"`
	Images string `yaml:"images"`
}

func (l location) location() detconv.Location {
	return detconv.Location{Path: l.Path, NamesPath: l.Names, ImageDir: l.Images}
}

// info holds dataset metadata to set on the output.
type info struct {
	Description string `yaml:"description"`
	Contributor string `yaml:"contributor"`
	URL         string `yaml:"url"`
	Version     string `yaml:"version"`
}

// apply sets the non-empty fields of i on m.
func (i info) apply(m *detconv.Mediator) {
	for _, f := range []struct {
		dst *string
		v   string
	}{
		{&m.Description, i.Description},
		{&m.Contributor, i.Contributor},
		{&m.URL, i.URL},
		{&m.Version, i.Version},
	} {
		if f.v != "" {
			*f.dst = f.v
		}
	}
}

// loadJob parses the YAML job file at path. Unknown keys are an error.
func loadJob(path string) (j job, err error) {
	file, err := os.Open(path)
	if err != nil {
		return job{}, fmt.Errorf("cannot read job file: %w", err)
	}
	defer func() {
		if cerr := file.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	dec := yaml.NewDecoder(file)
	dec.KnownFields(true)
	if err := dec.Decode(&j); err != nil {
		return job{}, fmt.Errorf("invalid job file %q: %w", path, err)
	}
	return j, nil
}

// applyEnv overrides j with the DETCONV_* variables found by lookup.
func (j *job) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(envDownload); ok && v != "" {
		download, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", envDownload, err)
		}
		j.Download = download
	}
	if v, ok := lookup(envHTTPTimeout); ok && v != "" {
		timeout, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", envHTTPTimeout, err)
		}
		j.HTTPTimeout = timeout
	}
	return nil
}

// applyFlags overrides j with the flags of cmd that were set on the command line, their values
// having been bound to f.
func (j *job) applyFlags(cmd *cobra.Command, f *job) {
	for name, v := range map[string]struct{ dst, src *string }{
		"from":          {&j.From, &f.From},
		"to":            {&j.To, &f.To},
		"input":         {&j.Input.Path, &f.Input.Path},
		"input-names":   {&j.Input.Names, &f.Input.Names},
		"input-images":  {&j.Input.Images, &f.Input.Images},
		"output":        {&j.Output.Path, &f.Output.Path},
		"output-names":  {&j.Output.Names, &f.Output.Names},
		"description":   {&j.Info.Description, &f.Info.Description},
		"contributor":   {&j.Info.Contributor, &f.Info.Contributor},
		"dataset-url":   {&j.Info.URL, &f.Info.URL},
		"version-label": {&j.Info.Version, &f.Info.Version},
	} {
		if cmd.Flags().Changed(name) {
			*v.dst = *v.src
		}
	}
	if cmd.Flags().Changed("download") {
		j.Download = f.Download
	}
	if cmd.Flags().Changed("http-timeout") {
		j.HTTPTimeout = f.HTTPTimeout
	}
	if cmd.Flags().Changed("shards") {
		j.Shards = f.Shards
	}
}

// formats validates j and returns the source and target formats.
func (j *job) formats() (from, to detconv.Format, err error) {
	if j.From == "" || j.To == "" {
		return 0, 0, errors.New("both the source (--from) and target (--to) formats are required")
	}
	if from, err = detconv.ParseFormat(j.From); err != nil {
		return 0, 0, err
	}
	if to, err = detconv.ParseFormat(j.To); err != nil {
		return 0, 0, err
	}
	if j.Input.Path == "" || j.Output.Path == "" {
		return 0, 0, errors.New("both --input and --output are required")
	}
	if j.Shards < 0 {
		return 0, 0, errors.New("the number of shards cannot be negative")
	}
	if j.Input.Path == j.Output.Path {
		return 0, 0, errors.New("the input and output paths cannot be identical")
	}
	return from, to, nil
}
