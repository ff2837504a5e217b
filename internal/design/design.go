package design

import (
	"crypto/rand"
	"math/big"
	"time"
)

// Category buckets for material line items.
const (
	CategoryPlants     = "Plants"
	CategoryHardscape  = "Hardscape"
	CategoryFeatures   = "Features"
	CategoryStructures = "Structures"
	CategoryFurniture  = "Furniture"
	CategoryLabor      = "Labor"
	CategoryOther      = "Other"
)

// Request is the immutable input bundle for one pipeline run.
type Request struct {
	YardImage   []byte
	YardMIME    string
	StyleImages []StyleImage
	Preferences string
	Style       string
	Budget      string
	Region      string
	SkipCatalog bool
}

// StyleImage is one reference photo attached to the request.
type StyleImage struct {
	Data []byte
	MIME string
}

// SceneContext is the opaque phase-1 artifact passed verbatim into later
// phases. No shape is enforced on it beyond non-emptiness.
type SceneContext string

// Manifest describes the elements the render phase claims to have added.
// Best effort: a missing or unparseable manifest is represented as nil.
type Manifest struct {
	Plants     []ManifestItem `json:"plants,omitempty"`
	Hardscape  []ManifestItem `json:"hardscape,omitempty"`
	Features   []ManifestItem `json:"features,omitempty"`
	Structures []ManifestItem `json:"structures,omitempty"`
	Furniture  []ManifestItem `json:"furniture,omitempty"`
}

// ManifestItem is a single added element with a best-effort quantity.
type ManifestItem struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity,omitempty"`
	Notes    string `json:"notes,omitempty"`
}

// MaterialLineItem is one priced row of the cost breakdown. Quantities and
// costs are model-produced strings with embedded units and currency; they are
// parsed defensively downstream.
type MaterialLineItem struct {
	Name      string `json:"name"`
	Quantity  string `json:"quantity"`
	UnitCost  string `json:"unitCost"`
	TotalCost string `json:"totalCost"`
	Notes     string `json:"notes,omitempty"`
	Category  string `json:"category"`
}

// CatalogMatch is a verified product/plant match from the catalog service.
type CatalogMatch struct {
	CommonName    string `json:"common_name"`
	BotanicalName string `json:"botanical_name"`
	ImageURL      string `json:"image_url"`
	Quantity      int    `json:"quantity"`
	Size          string `json:"size"`
	UnitPrice     string `json:"unit_price"`
	TotalEstimate string `json:"total_estimate"`
	Verified      bool   `json:"rag_verified"`
}

// CostEstimate is the reconciled phase-4 output. TotalCost is never zero for
// a successful run; the reconciliation policy guarantees a positive value.
type CostEstimate struct {
	TotalCost    float64            `json:"totalCost"`
	Currency     string             `json:"currency"`
	Breakdown    []MaterialLineItem `json:"breakdown"`
	PlantPalette []CatalogMatch     `json:"plantPalette,omitempty"`
	RAGEnhanced  bool               `json:"ragEnhanced"`
	BudgetNote   string             `json:"budgetNote,omitempty"`
}

// Analysis carries the narrative fields of the final result.
type Analysis struct {
	CurrentLayout     string `json:"currentLayout"`
	DesignConcept     string `json:"designConcept"`
	VisualDescription string `json:"visualDescription"`
	MaintenanceLevel  string `json:"maintenanceLevel"`
}

// Generated is the terminal pipeline artifact. It is built incrementally
// across phases; absent optional fields default rather than block progress.
type Generated struct {
	Analysis     Analysis     `json:"analysis"`
	Estimates    CostEstimate `json:"estimates"`
	RenderImages []string     `json:"renderImages"`
	PlanImage    string       `json:"planImage,omitempty"`
	DesignJSON   *Manifest    `json:"designJSON,omitempty"`
}

// Partial reports whether the snapshot is the render-only progressive
// delivery emitted before cost and plan phases finish.
func (g Generated) Partial() bool {
	return len(g.RenderImages) > 0 && g.Estimates.TotalCost == 0
}

const shortIDAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"

// NewShortID returns a URL-safe share identifier. Eight lowercase
// alphanumerics keep links short while leaving collisions negligible at
// the expected scale.
func NewShortID() string {
	buf := make([]byte, 8)
	max := big.NewInt(int64(len(shortIDAlphabet)))
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand only fails when the platform source is broken.
			buf[i] = shortIDAlphabet[i%len(shortIDAlphabet)]
			continue
		}
		buf[i] = shortIDAlphabet[n.Int64()]
	}
	return string(buf)
}

// Record is a persisted design with its share identifier.
type Record struct {
	ID           string    `json:"id"`
	ShortID      string    `json:"short_id"`
	OwnerID      string    `json:"owner_id,omitempty"`
	YardImageURL string    `json:"yard_image_url,omitempty"`
	Style        string    `json:"style,omitempty"`
	Result       Generated `json:"result"`
	CreatedAt    time.Time `json:"created_at"`
}
