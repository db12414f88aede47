package line

// Message is a renderable message part accepted by Push and Reply.
type Message interface {
	messageType() string
}

// TextMessage is a plain text message.
type TextMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func (TextMessage) messageType() string { return "text" }

// NewText creates a text message.
func NewText(text string) TextMessage {
	return TextMessage{Type: "text", Text: text}
}

// FlexMessage wraps a bubble or a carousel.
type FlexMessage struct {
	Type     string `json:"type"`
	AltText  string `json:"altText"`
	Contents any    `json:"contents"`
}

func (FlexMessage) messageType() string { return "flex" }

// NewFlexCarousel creates a flex message holding a carousel of bubbles.
func NewFlexCarousel(altText string, bubbles ...Bubble) FlexMessage {
	return FlexMessage{
		Type:    "flex",
		AltText: altText,
		Contents: Carousel{
			Type:     "carousel",
			Contents: bubbles,
		},
	}
}

// Carousel is a horizontally scrollable list of bubbles.
type Carousel struct {
	Type     string   `json:"type"`
	Contents []Bubble `json:"contents"`
}

// Bubble is a single flex card.
type Bubble struct {
	Type   string `json:"type"`
	Body   Box    `json:"body"`
	Footer *Box   `json:"footer,omitempty"`
}

// NewBubble creates a bubble with a vertical body of the given components.
func NewBubble(components ...Component) Bubble {
	return Bubble{
		Type: "bubble",
		Body: Box{
			Type:     "box",
			Layout:   "vertical",
			Contents: components,
		},
	}
}

// Box lays out components.
type Box struct {
	Type     string      `json:"type"`
	Layout   string      `json:"layout"`
	Contents []Component `json:"contents"`
}

// Component is a text or a button inside a box.
type Component interface {
	componentType() string
}

// TextComponent is a line of text inside a box.
type TextComponent struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func (TextComponent) componentType() string { return "text" }

// NewTextComponent creates a text component.
func NewTextComponent(text string) TextComponent {
	return TextComponent{Type: "text", Text: text}
}

// ButtonComponent is a button that sends a postback when pressed.
type ButtonComponent struct {
	Type   string         `json:"type"`
	Style  string         `json:"style"`
	Action PostbackAction `json:"action"`
}

func (ButtonComponent) componentType() string { return "button" }

// PostbackAction carries the payload delivered back in a postback event.
type PostbackAction struct {
	Type        string `json:"type"`
	Label       string `json:"label"`
	Data        string `json:"data"`
	DisplayText string `json:"displayText,omitempty"`
}

// NewPostbackButton creates a primary button labelled label carrying data.
func NewPostbackButton(label, data string) ButtonComponent {
	return ButtonComponent{
		Type:  "button",
		Style: "primary",
		Action: PostbackAction{
			Type:  "postback",
			Label: label,
			Data:  data,
		},
	}
}
