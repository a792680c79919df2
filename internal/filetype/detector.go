package filetype

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog/log"
)

// PDFMIME is the only type the extractor accepts.
const PDFMIME = "application/pdf"

// ErrNotPDF is returned for uploads recognised as some other document type.
var ErrNotPDF = errors.New("not a pdf document")

// Info contains detected file type information.
type Info struct {
	MIMEType    string
	Extension   string
	Supported   bool
	Description string
}

// Detect sniffs data by magic bytes, ignoring any client-supplied name or type.
func Detect(data []byte) Info {
	mtype := mimetype.Detect(data)
	info := Info{MIMEType: mtype.String(), Extension: mtype.Extension()}
	// mimetype reports parameters (e.g. charset) for text types
	if i := strings.IndexByte(info.MIMEType, ';'); i >= 0 {
		info.MIMEType = strings.TrimSpace(info.MIMEType[:i])
	}
	classify(&info)
	log.Debug().Str("mime", info.MIMEType).Str("ext", info.Extension).Bool("supported", info.Supported).Msg("detected file type")
	return info
}

// Check rejects data that is positively identified as a non-PDF format.
// Unrecognised bytes pass through so the PDF parser can report them as
// unparsable.
func Check(data []byte) (Info, error) {
	info := Detect(data)
	if info.Supported || !recognised(info.MIMEType) {
		return info, nil
	}
	return info, fmt.Errorf("%w: %s", ErrNotPDF, info.Description)
}

// recognised reports whether the type is something other than "unknown bytes".
func recognised(mime string) bool {
	switch mime {
	case "", "application/octet-stream", "text/plain":
		return false
	}
	return true
}

func classify(info *Info) {
	mime := info.MIMEType
	switch {
	case mime == PDFMIME:
		info.Supported = true
		info.Description = "PDF document"
	case mime == "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		mime == "application/msword":
		info.Description = "Microsoft Word document"
	case mime == "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		mime == "application/vnd.ms-excel":
		info.Description = "Microsoft Excel spreadsheet"
	case mime == "application/vnd.openxmlformats-officedocument.presentationml.presentation",
		mime == "application/vnd.ms-powerpoint":
		info.Description = "Microsoft PowerPoint presentation"
	case strings.HasPrefix(mime, "application/vnd.oasis.opendocument"):
		info.Description = "OpenDocument file"
	case strings.HasPrefix(mime, "image/"):
		info.Description = "Image file"
	case mime == "application/zip":
		info.Description = "ZIP archive"
	case strings.HasPrefix(mime, "text/"):
		info.Description = "Text file"
	default:
		info.Description = fmt.Sprintf("Unsupported file type: %s", mime)
	}
}
