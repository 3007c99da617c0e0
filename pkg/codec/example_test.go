package codec_test

import (
	"fmt"
	"log"
	"sort"

	"github.com/ssargent/freyjabench/pkg/codec"
)

// ExampleRecordCodec_basic demonstrates encoding a record and reading it back
func ExampleRecordCodec_basic() {
	c := codec.NewRecordCodec()

	payload, err := c.Encode(map[string]string{"f2": "v2", "f1": "v1"})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(string(payload))

	fields, err := c.Decode(payload, nil)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(fields["f1"], fields["f2"])

	// Output:
	// {"f1":"v1","f2":"v2"}
	// v1 v2
}

// ExampleRecordCodec_filters shows how a requested field list is applied
func ExampleRecordCodec_filters() {
	payload := []byte(`{"a":"1","b":"2","c":"3"}`)

	exclude := codec.NewRecordCodec()
	fields, _ := exclude.Decode(payload, []string{"a"})
	fmt.Println("exclude:", sortedNames(fields))

	project := &codec.RecordCodec{Filter: codec.FilterProject}
	fields, _ = project.Decode(payload, []string{"a"})
	fmt.Println("project:", sortedNames(fields))

	// Output:
	// exclude: [b c]
	// project: [a]
}

func sortedNames(fields map[string]string) []string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
