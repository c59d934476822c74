package prompt

import (
	"bytes"
	_ "embed"
	"fmt"
	"strings"
	"text/template"
)

//go:embed template/assistant.txt
var assistantRaw string

var assistantTmpl = template.Must(template.New("assistant").Option("missingkey=error").Parse(assistantRaw))

// Shop is the business identity the assistant speaks for. Every field is optional;
// empty fields are left out of the prompt.
type Shop struct {
	AssistantName string `envconfig:"ASSISTANT_NAME" split_words:"true"`
	Name          string `envconfig:"NAME"`
	Niche         string `envconfig:"NICHE"`
	Address       string `envconfig:"ADDRESS"`
	Phone         string `envconfig:"PHONE"`
	Email         string `envconfig:"EMAIL"`
}

func (s Shop) trimmed() Shop {
	return Shop{
		AssistantName: strings.TrimSpace(s.AssistantName),
		Name:          strings.TrimSpace(s.Name),
		Niche:         strings.TrimSpace(s.Niche),
		Address:       strings.TrimSpace(s.Address),
		Phone:         strings.TrimSpace(s.Phone),
		Email:         strings.TrimSpace(s.Email),
	}
}

// HasContact reports whether there is anything to list under the shop details.
func (s Shop) HasContact() bool {
	return s.Name != "" || s.Niche != "" || s.Address != "" || s.Phone != "" || s.Email != ""
}

// PromptSet holds loaded prompt content.
type PromptSet struct {
	Assistant string
}

// LoadPromptSet renders the embedded prompts for shop and trims them.
func LoadPromptSet(shop Shop) (PromptSet, error) {
	var buf bytes.Buffer
	if err := assistantTmpl.Execute(&buf, shop.trimmed()); err != nil {
		return PromptSet{}, fmt.Errorf("render assistant prompt: %w", err)
	}
	return PromptSet{
		Assistant: strings.TrimSpace(buf.String()),
	}, nil
}
