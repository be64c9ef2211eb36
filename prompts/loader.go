package prompts

import (
	_ "embed"
)

//go:embed sentiment.txt
var Sentiment string

//go:embed entities.txt
var Entities string

//go:embed image_labels.txt
var ImageLabels string
