package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/sensorable/detconv"
)

func newConvertCmd() *cobra.Command {
	var (
		configPath string
		flags      job
	)

	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Convert a dataset to another annotation format",
		Long: `Convert reads a dataset in the source format and writes it in the target format.

Formats and their locations:
  coco       --input/--output <file.json>, --input-images <dir> to locate the images
  pascalvoc  --input/--output <dir> of *.xml files
  yolo       --input/--output <dir> of *.txt files (images next to them), --*-names <file>
  tfrecord   --input/--output <file.record>, --*-names <label map file>,
             --input-images <dir> to extract the embedded images

Writing TFRecord requires the pixels of every image. Images without a local file are
downloaded from their COCO or Flickr URL when --download is set.

Settings can also be given as a YAML job file (--config), overridden by the environment
variables DETCONV_DOWNLOAD and DETCONV_HTTP_TIMEOUT and then by flags.`,
		Example: `  # COCO to TFRecord, downloading images that are not present locally
  detconv convert --from coco --to tfrecord --input instances_val2017.json \
    --input-images ./val2017 --output val.record --output-names label_map.pbtxt --download

  # PascalVOC to YOLO
  detconv convert --from voc --to yolo --input ./Annotations --output ./labels \
    --output-names ./obj.names`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var j job
			if configPath != "" {
				var err error
				if j, err = loadJob(configPath); err != nil {
					return err
				}
			}
			if err := j.applyEnv(os.LookupEnv); err != nil {
				return err
			}
			j.applyFlags(cmd, &flags)

			return executeConvert(j)
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Path to a YAML job file")
	cmd.Flags().StringVar(&flags.From, "from", "", "Source format {coco, pascalvoc, yolo, tfrecord}")
	cmd.Flags().StringVar(&flags.To, "to", "", "Target format {coco, pascalvoc, yolo, tfrecord}")
	cmd.Flags().StringVar(&flags.Input.Path, "input", "", "Source annotation file or directory")
	cmd.Flags().StringVar(&flags.Input.Names, "input-names", "",
		"Source class names file (yolo) or label map (tfrecord)")
	cmd.Flags().StringVar(&flags.Input.Images, "input-images", "",
		"Image root for coco sources, or the directory to extract tfrecord images to")
	cmd.Flags().StringVar(&flags.Output.Path, "output", "", "Target annotation file or directory")
	cmd.Flags().StringVar(&flags.Output.Names, "output-names", "",
		"Target class names file (yolo) or label map (tfrecord)")
	cmd.Flags().BoolVar(&flags.Download, "download", false,
		"Download images without a local file from their URL (tfrecord output)")
	cmd.Flags().DurationVar(&flags.HTTPTimeout, "http-timeout", detconv.DefaultHTTPTimeout,
		"Timeout for each image download")
	cmd.Flags().IntVar(&flags.Shards, "shards", 1,
		"The number of record files to distribute the examples over (tfrecord output)")
	cmd.Flags().StringVar(&flags.Info.Description, "description", "", "Dataset description")
	cmd.Flags().StringVar(&flags.Info.Contributor, "contributor", "", "Dataset contributor")
	cmd.Flags().StringVar(&flags.Info.URL, "dataset-url", "", "Dataset URL")
	cmd.Flags().StringVar(&flags.Info.Version, "version-label", "", "Dataset version")

	return cmd
}

func executeConvert(j job) error {
	from, to, err := j.formats()
	if err != nil {
		return err
	}
	slog.Info("Starting conversion", "from", from, "to", to, "input", j.Input.Path,
		"output", j.Output.Path)

	opts := detconv.WriteOptions{
		Prepare:  j.Info.apply,
		Download: j.Download,
		Fetcher:  detconv.NewHTTPFetcher(j.HTTPTimeout),
		Shards:   j.Shards,
	}
	m, err := detconv.Convert(from, j.Input.location(), to, j.Output.location(), opts)
	if err != nil {
		return err
	}

	slog.Info("Conversion complete", "output", j.Output.Path, "images", m.Images.Len(),
		"boxes", m.Images.NumBoxes())
	return nil
}
