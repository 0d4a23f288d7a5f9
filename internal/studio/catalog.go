package studio

import "slices"

// Voices are the prebuilt speech voices offered by the vocal panels
var Voices = []string{"Kore", "Puck", "Charon", "Fenrir", "Zephyr", "Aria", "Leo", "Nova", "Orion", "Lyra"}

// StylePresets are the songwriting chat presets
var StylePresets = []string{"Poetic", "Narrative", "Cyberpunk Anthem", "Folk Tale", "Dream Pop", "Simple & Catchy"}

// ImageStyles are offered by the art panel
var ImageStyles = []string{
	"Photorealistic", "Anime", "Vaporwave", "Gothic", "Art Deco", "Cyberpunk",
	"Fantasy", "3D Render", "Pixel Art", "Double Exposure", "Minimalist Line Art",
}

// ImageAspectRatios are the aspect ratios accepted for cover art
var ImageAspectRatios = []string{"1:1", "16:9", "9:16", "4:3", "3:4"}

// VideoStyles are offered by the video panel
var VideoStyles = []string{"Cinematic", "8mm Vintage", "Documentary", "Handheld Camera", "Drone Footage", "Psychedelic", "Time-lapse"}

// VideoAspectRatios are the aspect ratios accepted for music videos
var VideoAspectRatios = []string{"16:9", "9:16"}

// Catalog is the option lists the UI renders
type Catalog struct {
	Voices            []string `json:"voices"`
	StylePresets      []string `json:"style_presets"`
	ImageStyles       []string `json:"image_styles"`
	ImageAspectRatios []string `json:"image_aspect_ratios"`
	VideoStyles       []string `json:"video_styles"`
	VideoAspectRatios []string `json:"video_aspect_ratios"`
}

// Options returns the catalog
func Options() Catalog {
	return Catalog{
		Voices:            Voices,
		StylePresets:      StylePresets,
		ImageStyles:       ImageStyles,
		ImageAspectRatios: ImageAspectRatios,
		VideoStyles:       VideoStyles,
		VideoAspectRatios: VideoAspectRatios,
	}
}

func oneOf(list []string, v string) bool {
	return slices.Contains(list, v)
}
