package decomposition

import (
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// TechOrder is a small advisory note folded into the LLM prompt, loaded
// with yaml.v3 rather than a bespoke parser.
type TechOrder struct {
	Title string `yaml:"title"`
	Note  string `yaml:"note"`
}

// LoadTechOrders reads a YAML file of the shape `orders: [{title, note}, ...]`.
// A missing file is not an error: tech orders are advisory only.
func LoadTechOrders(path string) ([]TechOrder, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var doc struct {
		Orders []TechOrder `yaml:"orders"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc.Orders, nil
}

// Summarize renders tech orders into the short text block the LLM prompt
// embeds.
func Summarize(orders []TechOrder) string {
	if len(orders) == 0 {
		return "no tech orders on file"
	}
	var b strings.Builder
	for _, o := range orders {
		b.WriteString("- ")
		b.WriteString(o.Title)
		b.WriteString(": ")
		b.WriteString(o.Note)
		b.WriteString("\n")
	}
	return strings.TrimRight(b.String(), "\n")
}
