package tracker

// Comment payload shapes for the issue update endpoint. Both are built from
// typed structs and marshaled with encoding/json; result text is never
// interpolated into a JSON string by hand, so quotes, backslashes, control
// characters and non-ASCII text survive intact.

// CommentUpdate is the request body for PUT /rest/api/3/issue/{key}.
type CommentUpdate struct {
	Update UpdateBody `json:"update"`
}

type UpdateBody struct {
	Comment []CommentOp `json:"comment"`
}

type CommentOp struct {
	Add CommentAdd `json:"add"`
}

// CommentAdd carries the comment body: a plain string for the simple shape,
// or a *Doc for the rich shape.
type CommentAdd struct {
	Body any `json:"body"`
}

// Doc is the rich-text document the v3 comment API expects: a fixed two-level
// tree of document, paragraph and text run.
type Doc struct {
	Type    string `json:"type"`    // "doc"
	Version int    `json:"version"` // always 1
	Content []Node `json:"content"`
}

type Node struct {
	Type    string `json:"type"` // "paragraph" or "text"
	Text    string `json:"text,omitempty"`
	Content []Node `json:"content,omitempty"`
}

// NewDoc wraps text in the document/paragraph/text shape.
func NewDoc(text string) *Doc {
	return &Doc{
		Type:    "doc",
		Version: 1,
		Content: []Node{
			{
				Type: "paragraph",
				Content: []Node{
					{Type: "text", Text: text},
				},
			},
		},
	}
}

// NewSimpleComment builds the flat-string comment body accepted by the older
// API schema.
func NewSimpleComment(text string) CommentUpdate {
	return CommentUpdate{
		Update: UpdateBody{
			Comment: []CommentOp{
				{Add: CommentAdd{Body: text}},
			},
		},
	}
}

// NewRichComment builds the rich-text comment body.
func NewRichComment(text string) CommentUpdate {
	return CommentUpdate{
		Update: UpdateBody{
			Comment: []CommentOp{
				{Add: CommentAdd{Body: NewDoc(text)}},
			},
		},
	}
}

// NewComment selects the shape by format name; anything other than "simple"
// gets the rich shape.
func NewComment(format, text string) CommentUpdate {
	if format == "simple" {
		return NewSimpleComment(text)
	}
	return NewRichComment(text)
}
