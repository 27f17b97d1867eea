package credential

import qrcode "github.com/skip2/go-qrcode"

// QRImageSize is the width/height in pixels of generated QR code images.
const QRImageSize = 256

// QRImage renders a token as a PNG QR code for display in the guest's app.
func QRImage(token string) ([]byte, error) {
	return qrcode.Encode(token, qrcode.Medium, QRImageSize)
}
