package tryon

import "ulook-server/modules/common/imaging"

// Fidelity - speed/quality dial for generation
type Fidelity string

const (
	FidelityLow    Fidelity = "low"
	FidelityMedium Fidelity = "medium"
	FidelityHigh   Fidelity = "high"
)

// Generation modes
const (
	ModePreview = "preview"
	ModeRefine  = "refine"
)

// DetailCrop - a user-drawn region of interest on one wardrobe photo
type DetailCrop struct {
	Image string       `json:"image"`
	Rect  imaging.Rect `json:"rect"`
}

// GenerateRequest - POST /api/image request body
type GenerateRequest struct {
	Prompt                  string       `json:"prompt"`
	Mode                    string       `json:"mode,omitempty"`
	ClothingImages          []string     `json:"clothingImages,omitempty"`
	ClothingCategories      []string     `json:"clothingCategories,omitempty"`
	ClothingDetailCrops     []DetailCrop `json:"clothingDetailCrops,omitempty"`
	BodyRefImage            string       `json:"bodyRefImage,omitempty"`
	IncludeBodyRefInPreview bool         `json:"includeBodyRefInPreview,omitempty"`
	FaceImages              []string     `json:"faceImages,omitempty"`
	Fidelity                Fidelity     `json:"fidelity,omitempty"`
	N                       int          `json:"n,omitempty"`
}

// Metadata - diagnostics attached to every generation response
type Metadata struct {
	Mode                 string   `json:"mode"`
	Model                string   `json:"model"`
	Fidelity             Fidelity `json:"fidelity"`
	RequestedFidelity    Fidelity `json:"requestedFidelity"`
	HasClothingDetails   bool     `json:"hasClothingDetails"`
	UserDetailPatchCount int      `json:"userDetailPatchCount"`
	AutoPatchCount       int      `json:"autoPatchCount"`
	TotalImageInputs     int      `json:"totalImageInputs"`
}

// GenerateResponse - POST /api/image success body
type GenerateResponse struct {
	Image    string   `json:"image"`
	Raw      any      `json:"raw,omitempty"`
	Metadata Metadata `json:"metadata"`
}

// Logo - a logo occurrence found by the detail analyzer
type Logo struct {
	Text     string `json:"text,omitempty"`
	Position string `json:"position,omitempty"`
	Color    string `json:"color,omitempty"`
}

// Garment - structured attributes for one garment
type Garment struct {
	Category       string   `json:"category,omitempty"`
	DominantColors []string `json:"dominant_colors,omitempty"`
	Pattern        string   `json:"pattern,omitempty"`
	Material       string   `json:"material,omitempty"`
	Logos          []Logo   `json:"logos,omitempty"`
	Hardware       []string `json:"hardware,omitempty"`
	UniqueDetails  []string `json:"unique_details,omitempty"`
}

// GarmentDetails - output of the vision detail analysis
type GarmentDetails struct {
	Garments []Garment `json:"garments"`
}

// IsEmpty - whether analysis produced nothing usable
func (d GarmentDetails) IsEmpty() bool {
	return len(d.Garments) == 0
}
