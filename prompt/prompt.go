package prompt

import (
	"embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/bytedance/sonic"
)

//go:embed data/products.json data/purchases.json
var catalogFS embed.FS

// DefaultCustomer is used when the client settings omit a name.
const DefaultCustomer = "Guest"

// Catalog holds the static product and purchase data woven into the voice
// system prompt. In a full deployment this would come from a database.
type Catalog struct {
	Products  []map[string]any
	Purchases []map[string]any
}

// LoadCatalog parses the embedded catalog files.
func LoadCatalog() (*Catalog, error) {
	var c Catalog
	if err := loadJSON("data/products.json", &c.Products); err != nil {
		return nil, err
	}
	if err := loadJSON("data/purchases.json", &c.Purchases); err != nil {
		return nil, err
	}
	return &c, nil
}

func loadJSON(name string, v any) error {
	data, err := catalogFS.ReadFile(name)
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if err := sonic.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	return nil
}

var scriptTemplate = template.Must(template.New("script").Parse(`You are a voice assistant for an outdoor equipment store, speaking with {{.Customer}}.

Keep responses short and conversational; this is a spoken conversation, not a chat window. Answer questions about products and past purchases, and help the customer decide what to buy. Never invent products that are not in the catalog.

## Product catalog
{{range .Products}}- {{.JSON}}
{{end}}
## Customer purchase history
{{range .Purchases}}- {{.JSON}}
{{end}}
## Prior conversation context
{{if .Context}}{{range .Context}}- {{.JSON}}
{{end}}{{else}}(none)
{{end}}`))

type renderedItem struct {
	JSON string
}

type scriptData struct {
	Customer  string
	Products  []renderedItem
	Purchases []renderedItem
	Context   []renderedItem
}

// Render produces the voice system prompt for one session. contextJSON is
// the client-supplied prior-conversation payload (a JSON array); an empty or
// unparseable payload renders as no context rather than failing the session.
func (c *Catalog) Render(customer, contextJSON string) (string, error) {
	if customer == "" {
		customer = DefaultCustomer
	}

	data := scriptData{
		Customer:  customer,
		Products:  toItems(c.Products),
		Purchases: toItems(c.Purchases),
	}

	if strings.TrimSpace(contextJSON) != "" {
		var context []map[string]any
		if err := sonic.UnmarshalString(contextJSON, &context); err == nil {
			data.Context = toItems(context)
		}
	}

	var b strings.Builder
	if err := scriptTemplate.Execute(&b, data); err != nil {
		return "", fmt.Errorf("render system prompt: %w", err)
	}
	return b.String(), nil
}

func toItems(entries []map[string]any) []renderedItem {
	items := make([]renderedItem, 0, len(entries))
	for _, e := range entries {
		encoded, err := sonic.MarshalString(e)
		if err != nil {
			continue
		}
		items = append(items, renderedItem{JSON: encoded})
	}
	return items
}
