package checkout

import (
	"github.com/google/uuid"

	"github.com/smaite/weser/pkg/db/models"
)

// FailureReason classifies why a cart line cannot be fulfilled.
type FailureReason string

const (
	ReasonDeleted      FailureReason = "deleted"
	ReasonInactive     FailureReason = "inactive"
	ReasonInsufficient FailureReason = "insufficient"
)

// Failure describes one unfulfillable cart line.
type Failure struct {
	ProductID uuid.UUID     `json:"product_id"`
	Reason    FailureReason `json:"reason"`
	Available int           `json:"available"`
	Requested int           `json:"requested"`
}

// Line is the quantity a cart requests for one product.
type Line struct {
	ProductID uuid.UUID
	Quantity  int
}

// ValidateStock checks every line against the given products and reports
// all failures rather than stopping at the first. It reads state only;
// actually claiming stock is the guarded decrement at commit time.
func ValidateStock(lines []Line, products map[uuid.UUID]*models.Product) []Failure {
	var failures []Failure
	for _, line := range lines {
		listing, ok := products[line.ProductID]
		if !ok || listing == nil {
			failures = append(failures, Failure{
				ProductID: line.ProductID,
				Reason:    ReasonDeleted,
				Requested: line.Quantity,
			})
			continue
		}
		if !listing.Purchasable() {
			failures = append(failures, Failure{
				ProductID: line.ProductID,
				Reason:    ReasonInactive,
				Available: listing.StockQuantity,
				Requested: line.Quantity,
			})
			continue
		}
		if line.Quantity > listing.StockQuantity {
			failures = append(failures, Failure{
				ProductID: line.ProductID,
				Reason:    ReasonInsufficient,
				Available: listing.StockQuantity,
				Requested: line.Quantity,
			})
		}
	}
	return failures
}
