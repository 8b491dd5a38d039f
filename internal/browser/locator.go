package browser

import (
	"encoding/json"
	"fmt"
)

// LocatorKind distinguishes the strategies a Locator can use.
type LocatorKind string

const (
	// KindCSS resolves through document.querySelectorAll.
	KindCSS LocatorKind = "css"
	// KindXPath resolves through document.evaluate.
	KindXPath LocatorKind = "xpath"
	// KindText matches clickable elements by their visible text or, for
	// inputs, their value attribute.
	KindText LocatorKind = "text"
)

// Locator is one strategy for finding an element. Provider profiles carry
// ordered lists of these; resolution tries them in priority order.
type Locator struct {
	Kind  LocatorKind
	Value string
}

func (l Locator) String() string {
	return fmt.Sprintf("%s=%s", l.Kind, l.Value)
}

// CSS builds a CSS-selector locator.
func CSS(value string) Locator { return Locator{Kind: KindCSS, Value: value} }

// XPath builds an XPath locator.
func XPath(value string) Locator { return Locator{Kind: KindXPath, Value: value} }

// Text builds a visible-text locator.
func Text(value string) Locator { return Locator{Kind: KindText, Value: value} }

// collectScript returns a JavaScript expression that gathers the locator's
// matches, filters them to visible elements, tags each with a stable
// data-pagecap-ref attribute derived from token, and yields the match count.
// Tagging gives later interactions a selector that survives re-queries even
// when the original strategy matched on volatile attributes.
func (l Locator) collectScript(token string) (string, error) {
	value, err := json.Marshal(l.Value)
	if err != nil {
		return "", fmt.Errorf("locator value not encodable: %w", err)
	}
	tok, _ := json.Marshal(token)

	var gather string
	switch l.Kind {
	case KindCSS:
		gather = fmt.Sprintf(`Array.from(document.querySelectorAll(%s))`, value)
	case KindXPath:
		gather = fmt.Sprintf(`(() => {
			const out = [];
			const it = document.evaluate(%s, document, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null);
			for (let i = 0; i < it.snapshotLength; i++) out.push(it.snapshotItem(i));
			return out;
		})()`, value)
	case KindText:
		// Buttons and anchors match on contained text, inputs on @value.
		xpath := fmt.Sprintf(
			`//button[contains(normalize-space(.), %[1]s)] | //a[contains(normalize-space(.), %[1]s)] | //input[contains(@value, %[1]s)]`,
			string(value))
		quoted, _ := json.Marshal(xpath)
		gather = fmt.Sprintf(`(() => {
			const out = [];
			const it = document.evaluate(%s, document, null, XPathResult.ORDERED_NODE_SNAPSHOT_TYPE, null);
			for (let i = 0; i < it.snapshotLength; i++) out.push(it.snapshotItem(i));
			return out;
		})()`, string(quoted))
	default:
		return "", fmt.Errorf("unknown locator kind %q", l.Kind)
	}

	script := fmt.Sprintf(`(() => {
		const matches = %s;
		const visible = matches.filter((el) => {
			if (!(el instanceof Element)) return false;
			const rect = el.getBoundingClientRect();
			if (rect.width <= 0 || rect.height <= 0) return false;
			const style = window.getComputedStyle(el);
			return style.visibility !== 'hidden' && style.display !== 'none';
		});
		visible.forEach((el, i) => el.setAttribute('data-pagecap-ref', %s + '-' + i));
		return visible.length;
	})()`, gather, string(tok))

	return script, nil
}
