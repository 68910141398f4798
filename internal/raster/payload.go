package raster

import (
	"encoding/base64"
	"encoding/hex"
	"sync"

	"github.com/seventv/common/utils"
	"github.com/seventv/image-resizer/container"
	"github.com/seventv/image-resizer/task"
	"golang.org/x/crypto/sha3"
)

// Payload is the encoded output of one rasterization run.
type Payload struct {
	Format  task.Format
	Quality float64
	Width   int
	Height  int

	data []byte

	once sync.Once
	sha3 string
}

func NewPayload(data []byte, format task.Format, quality float64, width, height int) *Payload {
	return &Payload{
		Format:  format,
		Quality: quality,
		Width:   width,
		Height:  height,
		data:    data,
	}
}

func (p *Payload) Bytes() []byte {
	return p.data
}

func (p *Payload) Len() int {
	return len(p.data)
}

func (p *Payload) MIME() string {
	return container.MimeOf(p.Format)
}

// DataURLPrefix is the header that precedes the base64 body of DataURL.
func (p *Payload) DataURLPrefix() string {
	return "data:" + p.MIME() + ";base64,"
}

// DataURL renders the payload as data:<mime>;base64,<body>.
func (p *Payload) DataURL() string {
	prefix := p.DataURLPrefix()

	buf := make([]byte, len(prefix)+base64.StdEncoding.EncodedLen(len(p.data)))
	copy(buf, prefix)
	base64.StdEncoding.Encode(buf[len(prefix):], p.data)

	return utils.B2S(buf)
}

// SHA3 is the hex encoded SHA3-512 digest of the payload bytes.
func (p *Payload) SHA3() string {
	p.once.Do(func() {
		h := sha3.New512()
		_, _ = h.Write(p.data)
		p.sha3 = hex.EncodeToString(h.Sum(nil))
	})

	return p.sha3
}
