package aeat

import (
	"crypto/tls"
	"fmt"
)

// LoadCertFromPEM carga el certificado de cliente y su llave privada desde
// archivos PEM para la autenticación mutua con la AEAT.
// Si keyPath está vacío se asume que certPath contiene cert+key en un solo PEM.
func LoadCertFromPEM(certPath, keyPath string) (tls.Certificate, error) {
	if keyPath == "" {
		keyPath = certPath
	}
	cert, err := tls.LoadX509KeyPair(certPath, keyPath)
	if err != nil {
		return tls.Certificate{}, fmt.Errorf("cargar certificado AEAT: %w", err)
	}
	return cert, nil
}
