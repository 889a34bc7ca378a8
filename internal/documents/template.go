package documents

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html
var templateFS embed.FS

// certificateData is the payload for the certificate template.
type certificateData struct {
	Title          string
	ReferenceID    string
	IssueDate      string
	CommuneName    string
	Region         string
	Department     string
	FullName       string
	BirthDate      string
	BirthPlace     string
	FatherName     string
	MotherName     string
	Address        string
	DeathDate      string
	DeathPlace     string
	DeclarantName  string
	QRDataURI      template.URL
	VerificationID string
}

// documentTitles maps document types to the official French certificate title.
var documentTitles = map[string]string{
	"birth_certificate":       "Extrait d'Acte de Naissance",
	"death_certificate":       "Extrait d'Acte de Décès",
	"birth_declaration":       "Déclaration de Naissance",
	"marriage_certificate":    "Extrait d'Acte de Mariage",
	"nationality_certificate": "Certificat de Nationalité",
	"residence_certificate":   "Certificat de Résidence",
	"criminal_record":         "Extrait de Casier Judiciaire",
}

// renderCertificate renders the certificate HTML for the given data.
func renderCertificate(data certificateData) ([]byte, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/certificate.html")
	if err != nil {
		return nil, fmt.Errorf("parse certificate template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("render certificate: %w", err)
	}
	return buf.Bytes(), nil
}
