package whatsapp

import (
	"os"

	"github.com/mdp/qrterminal/v3"
	qrCode "github.com/skip2/go-qrcode"
	"github.com/vincent-petithory/dataurl"
)

const QRImageSize = 256

// QRPNG renders a pairing code as a PNG image.
func QRPNG(code string) ([]byte, error) {
	return qrCode.Encode(code, qrCode.Medium, QRImageSize)
}

// QRDataURL renders a pairing code as a base64 PNG data URL.
func QRDataURL(code string) (string, error) {
	png, err := QRPNG(code)
	if err != nil {
		return "", err
	}
	return dataurl.New(png, "image/png").String(), nil
}

func printQRTerminal(code string) {
	qrterminal.GenerateHalfBlock(code, qrterminal.L, os.Stdout)
}
