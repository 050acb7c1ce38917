package recognition

import (
	"fmt"
	"net/http"

	"github.com/joseph-ayodele/invoice-intake/constants"
	"github.com/joseph-ayodele/invoice-intake/internal/common"
)

// Document is an uploaded invoice before recognition. Content is dropped once
// text has been obtained.
type Document struct {
	Name      string
	MediaType string
	Content   []byte
}

func (d Document) Size() int { return len(d.Content) }

// Validate applies the input gate: allowed media type and at most 10 MiB.
// An empty declared media type is sniffed from the content.
func (d *Document) Validate() error {
	if len(d.Content) == 0 {
		return common.InputRejected("document is empty")
	}
	if len(d.Content) > constants.MaxDocumentBytes {
		return common.InputRejected(fmt.Sprintf("document is %d bytes; limit is %d", len(d.Content), constants.MaxDocumentBytes))
	}
	mt := constants.NormalizeMediaType(d.MediaType)
	if mt == "" || mt == "application/octet-stream" {
		mt = constants.NormalizeMediaType(http.DetectContentType(d.Content))
	}
	if _, ok := constants.SourceTypeFor(mt); !ok {
		return common.InputRejected(fmt.Sprintf("media type %q is not accepted", mt))
	}
	d.MediaType = mt
	return nil
}

// Release drops the payload so the bytes can be collected.
func (d *Document) Release() {
	d.Content = nil
}
