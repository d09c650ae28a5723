package poster

import (
	"encoding/base64"
	"fmt"
)

// Image is an encoded image payload held in memory.
type Image struct {
	Data     []byte
	MimeType string
	Width    int
	Height   int
}

func (i Image) IsZero() bool {
	return len(i.Data) == 0
}

func (i Image) Base64() string {
	return base64.StdEncoding.EncodeToString(i.Data)
}

func (i Image) DataURL() string {
	return fmt.Sprintf("data:%s;base64,%s", i.MimeType, i.Base64())
}
