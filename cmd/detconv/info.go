package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/sensorable/detconv"
)

func newInfoCmd() *cobra.Command {
	var (
		from string
		loc  location
	)

	cmd := &cobra.Command{
		Use:   "info",
		Short: "Print statistics about a dataset",
		Long: `Info reads a dataset and prints the number of images, boxes, classes and
super-categories, followed by the categories.`,
		Example: `  detconv info --from yolo --input ./labels --input-names ./obj.names`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := detconv.ParseFormat(from)
			if err != nil {
				return err
			}
			m, err := detconv.Read(f, loc.location())
			if err != nil {
				return fmt.Errorf("failed to read %v dataset: %w", f, err)
			}
			return printInfo(cmd.OutOrStdout(), m)
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "Dataset format {coco, pascalvoc, yolo, tfrecord}")
	cmd.Flags().StringVar(&loc.Path, "input", "", "Annotation file or directory")
	cmd.Flags().StringVar(&loc.Names, "input-names", "",
		"Class names file (yolo) or label map (tfrecord)")
	cmd.Flags().StringVar(&loc.Images, "input-images", "", "Image root (coco)")

	_ = cmd.MarkFlagRequired("from")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func printInfo(w io.Writer, m *detconv.Mediator) error {
	s := m.Stats()
	_, err := fmt.Fprintf(w, "images:          %d\nboxes:           %d\nclasses:         %d\n"+
		"supercategories: %d\n", s.Images, s.Boxes, s.Classes, s.Supercategories)
	if err != nil {
		return err
	}

	for _, c := range m.Categories.All() {
		if _, err := fmt.Fprintf(w, "  %4d  %s (%s)\n", c.ID, c.Name, c.Supercategory); err != nil {
			return err
		}
	}
	return nil
}
