package site

// Option is one entry of a ListSelector
type Option struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// ListSelector is a single choice list. OnChange runs when the selection
// moves to a different known option.
type ListSelector struct {
	Options    []Option     `json:"options"`
	SelectedID string       `json:"selected_id"`
	OnChange   func(string) `json:"-"`
}

// ListSelectorOption configures a ListSelector
type ListSelectorOption func(*ListSelector)

// WithOptions replaces the default options
func WithOptions(opts ...Option) ListSelectorOption {
	return func(l *ListSelector) {
		if len(opts) > 0 {
			l.Options = opts
		}
	}
}

// WithSelected sets the initial selection
func WithSelected(id string) ListSelectorOption {
	return func(l *ListSelector) {
		l.SelectedID = id
	}
}

// WithOnChange sets the change callback
func WithOnChange(fn func(string)) ListSelectorOption {
	return func(l *ListSelector) {
		l.OnChange = fn
	}
}

// DefaultOptions are "Option 1" through "Option 4"
func DefaultOptions() []Option {
	return []Option{
		{ID: "1", Label: "Option 1"},
		{ID: "2", Label: "Option 2"},
		{ID: "3", Label: "Option 3"},
		{ID: "4", Label: "Option 4"},
	}
}

// NewListSelector returns a selector with the default options and "1"
// selected unless opts say otherwise
func NewListSelector(opts ...ListSelectorOption) *ListSelector {
	l := &ListSelector{
		Options:    DefaultOptions(),
		SelectedID: "1",
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Select moves the selection to id. Unknown IDs are ignored and reported
// as false.
func (l *ListSelector) Select(id string) bool {
	if !l.Has(id) {
		return false
	}
	if id == l.SelectedID {
		return true
	}
	l.SelectedID = id
	if l.OnChange != nil {
		l.OnChange(id)
	}
	return true
}

// Has reports whether id is one of the options
func (l *ListSelector) Has(id string) bool {
	for _, o := range l.Options {
		if o.ID == id {
			return true
		}
	}
	return false
}

// Selected returns the selected option, if any
func (l *ListSelector) Selected() (Option, bool) {
	for _, o := range l.Options {
		if o.ID == l.SelectedID {
			return o, true
		}
	}
	return Option{}, false
}

// IsSelected is used by templates
func (l *ListSelector) IsSelected(id string) bool {
	return l.SelectedID == id
}
