package entities

import (
	"fmt"
	"strings"
)

// LocatorStrategy определяет способ поиска элемента на странице
type LocatorStrategy string

const (
	ByRole        LocatorStrategy = "role"
	ByLabel       LocatorStrategy = "label"
	ByText        LocatorStrategy = "text"
	ByPlaceholder LocatorStrategy = "placeholder"
	ByAltText     LocatorStrategy = "alt"
	ByCSS         LocatorStrategy = "css"
)

// Locator describes how to find elements on the current page.
// It is resolved by the engine on every use and is never cached between steps.
type Locator struct {
	Strategy LocatorStrategy `json:"strategy" yaml:"strategy"`
	Role     string          `json:"role,omitempty" yaml:"role,omitempty"`
	Value    string          `json:"value" yaml:"value"`
	Exact    bool            `json:"exact,omitempty" yaml:"exact,omitempty"`
	HasText  string          `json:"has_text,omitempty" yaml:"has_text,omitempty"`
	First    bool            `json:"first,omitempty" yaml:"first,omitempty"`
	Parent   *Locator        `json:"within,omitempty" yaml:"within,omitempty"`
}

// Role - locator by ARIA role and accessible name
func Role(role, name string) Locator {
	return Locator{Strategy: ByRole, Role: role, Value: name}
}

// Label - locator by associated label text
func Label(text string) Locator {
	return Locator{Strategy: ByLabel, Value: text}
}

// Text - locator by visible text
func Text(text string) Locator {
	return Locator{Strategy: ByText, Value: text}
}

// Placeholder - locator by input placeholder
func Placeholder(text string) Locator {
	return Locator{Strategy: ByPlaceholder, Value: text}
}

// AltText - locator by image alt text
func AltText(text string) Locator {
	return Locator{Strategy: ByAltText, Value: text}
}

// CSS - locator by raw CSS selector
func CSS(selector string) Locator {
	return Locator{Strategy: ByCSS, Value: selector}
}

// ExactMatch returns a copy that requires an exact name/text match
func (l Locator) ExactMatch() Locator {
	l.Exact = true
	return l
}

// Filter returns a copy narrowed to elements containing text
func (l Locator) Filter(text string) Locator {
	l.HasText = text
	return l
}

// Nearest returns a copy narrowed to the first match
func (l Locator) Nearest() Locator {
	l.First = true
	return l
}

// Within returns a copy resolved relative to parent
func (l Locator) Within(parent Locator) Locator {
	p := parent
	l.Parent = &p
	return l
}

// Validate checks that the locator can be resolved by an engine
func (l Locator) Validate() error {
	switch l.Strategy {
	case ByRole:
		if l.Role == "" {
			return fmt.Errorf("role locator requires a role")
		}
	case ByLabel, ByText, ByPlaceholder, ByAltText, ByCSS:
		if l.Value == "" {
			return fmt.Errorf("%s locator requires a value", l.Strategy)
		}
	default:
		return fmt.Errorf("unknown locator strategy %q", l.Strategy)
	}
	if l.Parent != nil {
		if err := l.Parent.Validate(); err != nil {
			return fmt.Errorf("within: %w", err)
		}
	}
	return nil
}

// String renders a stable descriptor, e.g. role=heading[name="Карточки"] >> first
func (l Locator) String() string {
	var b strings.Builder
	if l.Parent != nil {
		b.WriteString(l.Parent.String())
		b.WriteString(" >> ")
	}

	switch l.Strategy {
	case ByRole:
		b.WriteString("role=")
		b.WriteString(l.Role)
		if l.Value != "" {
			fmt.Fprintf(&b, "[name=%q", l.Value)
			if l.Exact {
				b.WriteString("s")
			}
			b.WriteString("]")
		}
	default:
		fmt.Fprintf(&b, "%s=%q", l.Strategy, l.Value)
		if l.Exact {
			b.WriteString("s")
		}
	}

	if l.HasText != "" {
		fmt.Fprintf(&b, " has-text=%q", l.HasText)
	}
	if l.First {
		b.WriteString(" >> first")
	}
	return b.String()
}

// ElementSnapshot - состояние локатора в момент одного опроса
type ElementSnapshot struct {
	Count   int `json:"count"`
	Visible int `json:"visible"`
}

func (s ElementSnapshot) String() string {
	switch {
	case s.Count == 0:
		return "detached"
	case s.Visible == 0:
		return fmt.Sprintf("attached (%d), hidden", s.Count)
	default:
		return fmt.Sprintf("attached (%d), visible (%d)", s.Count, s.Visible)
	}
}
