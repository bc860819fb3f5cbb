package entity

import (
	"docseq/internal/core/apperror"
)

// DocumentType identifies a kind of commercial document. Each type owns an
// independent numbering rule.
type DocumentType string

const (
	DocumentTypeQuotation     DocumentType = "quotation"
	DocumentTypeInvoice       DocumentType = "invoice"
	DocumentTypeReceipt       DocumentType = "receipt"
	DocumentTypeTaxInvoice    DocumentType = "tax_invoice"
	DocumentTypeCreditNote    DocumentType = "credit_note"
	DocumentTypePurchaseOrder DocumentType = "purchase_order"
	DocumentTypeBillingNote   DocumentType = "billing_note"
)

// AllDocumentTypes lists every supported type in a stable order.
var AllDocumentTypes = []DocumentType{
	DocumentTypeQuotation,
	DocumentTypeInvoice,
	DocumentTypeReceipt,
	DocumentTypeTaxInvoice,
	DocumentTypeCreditNote,
	DocumentTypePurchaseOrder,
	DocumentTypeBillingNote,
}

// ParseDocumentType validates s and converts it to a DocumentType.
func ParseDocumentType(s string) (DocumentType, error) {
	t := DocumentType(s)
	if err := t.Validate(); err != nil {
		return "", err
	}
	return t, nil
}

// Validate checks that t is one of the known document types.
func (t DocumentType) Validate() error {
	for _, known := range AllDocumentTypes {
		if t == known {
			return nil
		}
	}
	return apperror.NewValidation("unknown document type").
		WithDetail("field", "documentType").
		WithDetail("value", string(t))
}

// IsReceipt reports whether documents of this type are settled on issue.
func (t DocumentType) IsReceipt() bool {
	return t == DocumentTypeReceipt
}

func (t DocumentType) String() string {
	return string(t)
}
