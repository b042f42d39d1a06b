package query

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Form is an HTML form ready for submission.
type Form struct {
	// Action is the absolute submission URL.
	Action *url.URL

	// Method is GET or POST.
	Method string

	// Values holds the successful controls.
	Values url.Values

	// Referer is the URL of the page that contains the form.
	Referer string
}

// ParseForm collects the successful controls of form. Unchecked
// checkboxes and radio buttons, disabled controls, controls without a name,
// and buttons are skipped.
func ParseForm(doc *Document, form *goquery.Selection) Form {
	f := Form{
		Method: http.MethodGet,
		Values: url.Values{},
	}
	if strings.EqualFold(strings.TrimSpace(form.AttrOr("method", "")), http.MethodPost) {
		f.Method = http.MethodPost
	}

	pageURL := doc.Url
	if pageURL != nil {
		f.Referer = pageURL.String()
	}
	f.Action = pageURL
	if action := strings.TrimSpace(form.AttrOr("action", "")); action != "" {
		if ref, err := url.Parse(action); err == nil {
			if base := doc.Base(); base != nil {
				f.Action = base.ResolveReference(ref)
			} else {
				f.Action = ref
			}
		}
	}

	form.Find("input, select, textarea").Each(func(_ int, s *goquery.Selection) {
		name, ok := s.Attr("name")
		if !ok || name == "" {
			return
		}
		if _, disabled := s.Attr("disabled"); disabled {
			return
		}

		switch goquery.NodeName(s) {
		case "input":
			switch strings.ToLower(s.AttrOr("type", "text")) {
			case "submit", "image", "button", "reset", "file":
				return
			case "checkbox", "radio":
				if _, checked := s.Attr("checked"); !checked {
					return
				}
				f.Values.Add(name, s.AttrOr("value", "on"))
			default:
				f.Values.Add(name, s.AttrOr("value", ""))
			}
		case "textarea":
			f.Values.Add(name, s.Text())
		case "select":
			options := s.Find("option")
			selected := options.FilterFunction(func(_ int, o *goquery.Selection) bool {
				_, ok := o.Attr("selected")
				return ok
			})
			if selected.Length() == 0 {
				if _, multiple := s.Attr("multiple"); multiple {
					return
				}
				selected = options.First()
			}
			selected.Each(func(_ int, o *goquery.Selection) {
				if _, disabled := o.Attr("disabled"); disabled {
					return
				}
				value, ok := o.Attr("value")
				if !ok {
					value = strings.TrimSpace(o.Text())
				}
				f.Values.Add(name, value)
			})
		}
	})
	return f
}

// NewRequest builds the submission request. GET forms carry the values in
// the query string; POST forms send them url-encoded.
func (f Form) NewRequest(ctx context.Context) (*http.Request, error) {
	if f.Action == nil || !f.Action.IsAbs() {
		return nil, fmt.Errorf("invalid form action: %w", ErrRelativeURL)
	}
	action := *f.Action
	action.Fragment = ""

	var req *http.Request
	var err error
	if f.Method == http.MethodPost {
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, action.String(), strings.NewReader(f.Values.Encode()))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	} else {
		action.RawQuery = f.Values.Encode()
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, action.String(), nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create form request: %w", err)
	}
	if f.Referer != "" {
		req.Header.Set("Referer", f.Referer)
	}
	return req, nil
}

// Submit returns a request stage for f.
func (f Form) Submit() Query[*Response] {
	return Request(f.NewRequest)
}

// SubmitForm submits the first form matched by selector in each document.
// Values in override replace the collected values of the same name. A
// document without a matching form fails with ErrElementNotFound.
func SubmitForm(q Query[Fetch[*Document]], selector string, override url.Values) Query[*Response] {
	return submitForms(q, selector, override, true)
}

// SubmitForms submits every form matched by selector, one after another in
// document order.
func SubmitForms(q Query[Fetch[*Document]], selector string, override url.Values) Query[*Response] {
	return submitForms(q, selector, override, false)
}

func submitForms(q Query[Fetch[*Document]], selector string, override url.Values, firstOnly bool) Query[*Response] {
	if selector == "" {
		selector = "form"
	}
	return Then(q, func(page Fetch[*Document]) Query[*Response] {
		forms := page.Content.Find(selector).FilterFunction(func(_ int, s *goquery.Selection) bool {
			return goquery.NodeName(s) == "form"
		})
		if forms.Length() == 0 {
			return Fail[*Response](&ElementNotFoundError{Selector: selector})
		}
		if firstOnly {
			forms = forms.First()
		}

		var submissions []Query[*Response]
		forms.Each(func(_ int, s *goquery.Selection) {
			form := ParseForm(page.Content, s)
			for name, values := range override {
				form.Values[name] = values
			}
			submissions = append(submissions, form.Submit())
		})
		return Flatten(submissions...)
	})
}
