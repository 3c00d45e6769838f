package protos

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/golang/protobuf/proto"
	"google.golang.org/protobuf/types/dynamicpb"
)

// LabelMapItem is one entry of an object detection StringIntLabelMap.
type LabelMapItem struct {
	ID          int32
	Name        string
	DisplayName string
}

// ParseLabelMap parses a label map in protobuf text format.
func ParseLabelMap(text string) ([]LabelMapItem, error) {
	labelMap := dynamicpb.NewMessage(labelMapDesc)
	if err := proto.UnmarshalText(text, labelMap); err != nil {
		return nil, err
	}

	var (
		itemField    = labelMapDesc.Fields().ByName("item")
		idField      = labelMapItemDesc.Fields().ByName("id")
		nameField    = labelMapItemDesc.Fields().ByName("name")
		displayField = labelMapItemDesc.Fields().ByName("display_name")
	)
	list := labelMap.Get(itemField).List()
	items := make([]LabelMapItem, 0, list.Len())
	for i := 0; i < list.Len(); i++ {
		m := list.Get(i).Message()
		item := LabelMapItem{
			ID:          int32(m.Get(idField).Int()),
			Name:        m.Get(nameField).String(),
			DisplayName: m.Get(displayField).String(),
		}
		if item.Name == "" || item.ID <= 0 {
			return nil, fmt.Errorf("invalid entry: %s: %d", item.Name, item.ID)
		}
		items = append(items, item)
	}

	return items, nil
}

// LoadLabelMap reads the label map at path. If an error occurs because the file does not exist,
// then os.IsNotExist will return true for the error.
func LoadLabelMap(path string) ([]LabelMapItem, error) {
	text, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	items, err := ParseLabelMap(string(text))
	if err != nil {
		return nil, fmt.Errorf("failed to parse the label map %q: %w", path, err)
	}
	return items, nil
}

// WriteLabelMap writes the items as `item { id: N name: 'str' }` blocks, one per item, in the given
// order.
func WriteLabelMap(w io.Writer, items []LabelMapItem) error {
	bw := bufio.NewWriter(w)
	for _, item := range items {
		_, _ = fmt.Fprintf(bw, "item {\n  id: %d\n  name: '%s'\n", item.ID, quote(item.Name))
		if item.DisplayName != "" {
			_, _ = fmt.Fprintf(bw, "  display_name: '%s'\n", quote(item.DisplayName))
		}
		_, _ = bw.WriteString("}\n")
	}
	return bw.Flush()
}

var quoter = strings.NewReplacer(`\`, `\\`, `'`, `\'`, "\n", `\n`)

// quote escapes s for use inside a single-quoted text format string.
func quote(s string) string {
	return quoter.Replace(s)
}
