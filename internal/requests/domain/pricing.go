package domain

// DocumentType identifies the kind of civil document being requested.
type DocumentType string

const (
	BirthCertificate       DocumentType = "birth_certificate"
	DeathCertificate       DocumentType = "death_certificate"
	BirthDeclaration       DocumentType = "birth_declaration"
	MarriageCertificate    DocumentType = "marriage_certificate"
	NationalityCertificate DocumentType = "nationality_certificate"
	ResidenceCertificate   DocumentType = "residence_certificate"
	CriminalRecord         DocumentType = "criminal_record"
)

// ParseDocumentType validates a raw document type value.
func ParseDocumentType(raw string) (DocumentType, bool) {
	switch DocumentType(raw) {
	case BirthCertificate, DeathCertificate, BirthDeclaration,
		MarriageCertificate, NationalityCertificate,
		ResidenceCertificate, CriminalRecord:
		return DocumentType(raw), true
	default:
		return "", false
	}
}

// DeliveryMethod is how the citizen receives the finished document.
type DeliveryMethod string

const (
	DeliveryPickup   DeliveryMethod = "pickup"
	DeliveryCourier  DeliveryMethod = "delivery"
	DeliveryDownload DeliveryMethod = "download"
)

// ParseDeliveryMethod validates a raw delivery method value.
func ParseDeliveryMethod(raw string) (DeliveryMethod, bool) {
	switch DeliveryMethod(raw) {
	case DeliveryPickup, DeliveryCourier, DeliveryDownload:
		return DeliveryMethod(raw), true
	default:
		return "", false
	}
}

// DeliveryFee is the flat courier surcharge in XOF, applied only for
// DeliveryCourier.
const DeliveryFee int64 = 2000

// documentPrices is the single authoritative price table (XOF).
var documentPrices = map[DocumentType]int64{
	BirthCertificate:       2000,
	DeathCertificate:       1500,
	BirthDeclaration:       1500,
	MarriageCertificate:    2000,
	NationalityCertificate: 5000,
	ResidenceCertificate:   1000,
	CriminalRecord:         2000,
}

// DocumentPrice returns the fixed price of a document type in XOF.
// Unknown types price at zero; callers validate the type beforehand.
func DocumentPrice(t DocumentType) int64 {
	return documentPrices[t]
}

// Quote is the price breakdown computed once at request creation and
// immutable afterwards.
type Quote struct {
	DocumentPrice int64
	DeliveryFee   int64
	TotalPrice    int64
}

// PriceRequest computes the full quote for a document type and delivery method.
func PriceRequest(t DocumentType, m DeliveryMethod) Quote {
	q := Quote{DocumentPrice: DocumentPrice(t)}
	if m == DeliveryCourier {
		q.DeliveryFee = DeliveryFee
	}
	q.TotalPrice = q.DocumentPrice + q.DeliveryFee
	return q
}
