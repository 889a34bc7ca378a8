package domain

import "testing"

func TestPriceRequest_CourierAddsFee(t *testing.T) {
	q := PriceRequest(BirthCertificate, DeliveryCourier)
	if q.DocumentPrice != 2000 {
		t.Fatalf("document price = %d, want 2000", q.DocumentPrice)
	}
	if q.DeliveryFee != DeliveryFee {
		t.Fatalf("delivery fee = %d, want %d", q.DeliveryFee, DeliveryFee)
	}
	if q.TotalPrice != 4000 {
		t.Fatalf("total = %d, want 4000", q.TotalPrice)
	}
}

func TestPriceRequest_PickupAndDownloadHaveNoFee(t *testing.T) {
	for _, m := range []DeliveryMethod{DeliveryPickup, DeliveryDownload} {
		q := PriceRequest(ResidenceCertificate, m)
		if q.DeliveryFee != 0 {
			t.Errorf("method %s: delivery fee = %d, want 0", m, q.DeliveryFee)
		}
		if q.TotalPrice != q.DocumentPrice {
			t.Errorf("method %s: total %d != document price %d", m, q.TotalPrice, q.DocumentPrice)
		}
	}
}

func TestDocumentPrice_Table(t *testing.T) {
	want := map[DocumentType]int64{
		BirthCertificate:       2000,
		DeathCertificate:       1500,
		BirthDeclaration:       1500,
		MarriageCertificate:    2000,
		NationalityCertificate: 5000,
		ResidenceCertificate:   1000,
		CriminalRecord:         2000,
	}
	for dt, price := range want {
		if got := DocumentPrice(dt); got != price {
			t.Errorf("DocumentPrice(%s) = %d, want %d", dt, got, price)
		}
	}
}

func TestParseDocumentType(t *testing.T) {
	if _, ok := ParseDocumentType("birth_certificate"); !ok {
		t.Error("ParseDocumentType rejected a valid type")
	}
	if _, ok := ParseDocumentType("land_title"); ok {
		t.Error("ParseDocumentType accepted an unknown type")
	}
}

func TestParseDeliveryMethod(t *testing.T) {
	for raw, want := range map[string]DeliveryMethod{
		"pickup":   DeliveryPickup,
		"delivery": DeliveryCourier,
		"download": DeliveryDownload,
	} {
		got, ok := ParseDeliveryMethod(raw)
		if !ok || got != want {
			t.Errorf("ParseDeliveryMethod(%q) = %v, %v", raw, got, ok)
		}
	}
	if _, ok := ParseDeliveryMethod("drone"); ok {
		t.Error("ParseDeliveryMethod accepted an unknown method")
	}
}
