package workflow

// Event is one inbound transport event, tagged with the conversation it
// belongs to. The engine serializes events per chat.
type Event interface {
	Chat() int64
	kind() string
}

// MenuSelect starts (or restarts) a workflow. Any files collected by a
// previous unfinished workflow are released.
type MenuSelect struct {
	ChatID int64
	Kind   WorkflowKind
}

func (e MenuSelect) Chat() int64 { return e.ChatID }
func (e MenuSelect) kind() string { return "menu_select" }

// OrganizeChoice picks remove/reorder/extract after an organize upload. It
// does not reset collected files: the uploaded document stays.
type OrganizeChoice struct {
	ChatID int64
	Mode   OrganizeMode
}

func (e OrganizeChoice) Chat() int64 { return e.ChatID }
func (e OrganizeChoice) kind() string { return "organize_choice" }

// FileUpload delivers a file's bytes and declared name. The engine validates
// the extension against the current state before anything touches storage.
type FileUpload struct {
	ChatID int64
	Name   string
	Data   []byte
}

func (e FileUpload) Chat() int64 { return e.ChatID }
func (e FileUpload) kind() string { return "file_upload" }

// TextReply is a free-text answer, accepted only in text-awaiting states.
type TextReply struct {
	ChatID int64
	Text   string
}

func (e TextReply) Chat() int64 { return e.ChatID }
func (e TextReply) kind() string { return "text_reply" }

// Cancel abandons the current workflow and releases its files.
type Cancel struct {
	ChatID int64
}

func (e Cancel) Chat() int64 { return e.ChatID }
func (e Cancel) kind() string { return "cancel" }

// Choice is one option the transport should render as a pressable button.
// Data is the complete callback payload the transport must echo back
// verbatim when the button is pressed.
type Choice struct {
	Label string
	Data  string
}

// Responder is the outward half of the transport boundary. Implementations
// own all formatting and markup.
type Responder interface {
	SendText(chatID int64, text string) error
	SendChoices(chatID int64, text string, choices []Choice) error
	SendDocument(chatID int64, path, caption string) error
	SendPhoto(chatID int64, photo []byte, caption string) error
}

// Sink receives fire-and-forget usage telemetry. Implementations must never
// let a telemetry failure affect workflow outcomes.
type Sink interface {
	Action(chatID int64, action, detail, fileName string)
}
