package workflow

// State is what a session is waiting for next. Illegal state/event
// combinations are rejected at the engine, not discovered downstream.
type State int

const (
	StateIdle State = iota
	StateAwaitingUpload
	StateAwaitingFirstMergeFile
	StateAwaitingSecondMergeFile
	StateAwaitingRangeText
	StateAwaitingStepText
	StateAwaitingOrganizeChoice
	StateAwaitingOrganizeIndices
	StateAwaitingQrText
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingUpload:
		return "awaiting_upload"
	case StateAwaitingFirstMergeFile:
		return "awaiting_first_merge_file"
	case StateAwaitingSecondMergeFile:
		return "awaiting_second_merge_file"
	case StateAwaitingRangeText:
		return "awaiting_range_text"
	case StateAwaitingStepText:
		return "awaiting_step_text"
	case StateAwaitingOrganizeChoice:
		return "awaiting_organize_choice"
	case StateAwaitingOrganizeIndices:
		return "awaiting_organize_indices"
	case StateAwaitingQrText:
		return "awaiting_qr_text"
	default:
		return "unknown"
	}
}

// WorkflowKind identifies which transformation a session is configured to
// perform.
type WorkflowKind string

const (
	KindSplitRange       WorkflowKind = "split_range"
	KindSplitEvery       WorkflowKind = "split_every"
	KindOrganize         WorkflowKind = "organize"
	KindMerge            WorkflowKind = "merge"
	KindHandwritten      WorkflowKind = "handwritten"
	KindWordToPDF        WorkflowKind = "word_to_pdf"
	KindPDFToWord        WorkflowKind = "pdf_to_word"
	KindJpgToPng         WorkflowKind = "jpg_to_png"
	KindPngToJpg         WorkflowKind = "png_to_jpg"
	KindRemoveBackground WorkflowKind = "remove_bg"
	KindReadQR           WorkflowKind = "read_qr"
	KindMakeQR           WorkflowKind = "make_qr"
)

// CallbackOrganizePrefix tags organize-mode choice payloads on the wire. The
// engine emits it in Choice.Data and the transport routes it back to an
// OrganizeChoice event; the transport itself never interprets the payload.
const CallbackOrganizePrefix = "org:"

// OrganizeMode selects how the organize workflow interprets its index list.
type OrganizeMode string

const (
	OrganizeRemove  OrganizeMode = "remove"
	OrganizeReorder OrganizeMode = "reorder"
	OrganizeExtract OrganizeMode = "extract"
)

// uploadExts maps each single-upload workflow to the extensions it accepts.
// Merge is absent: its two-phase states validate on their own.
var uploadExts = map[WorkflowKind][]string{
	KindSplitRange:       {".pdf"},
	KindSplitEvery:       {".pdf"},
	KindOrganize:         {".pdf"},
	KindPDFToWord:        {".pdf"},
	KindWordToPDF:        {".docx"},
	KindHandwritten:      {".txt"},
	KindJpgToPng:         {".jpg", ".jpeg"},
	KindPngToJpg:         {".png"},
	KindRemoveBackground: {".jpg", ".jpeg", ".png"},
	KindReadQR:           {".jpg", ".jpeg", ".png"},
}
