// safelist.go - Coverage-Safelist der strikt geprueften Modelle
// Enthält: Die Modellnamen, fuer die vollstaendige Shape-Annotationen
// nach der Inferenz verpflichtend sind, und DefaultCoverage.
package conformance

import "github.com/zimond/wonnx/ml"

// coverageSafelist names the models whose tests must carry complete shape
// and type annotations for every non-Dropout output. Models containing a
// recurrent operator are waived by the policy itself.
var coverageSafelist = []string{
	"bvlc_alexnet",
	"densenet121",
	"inception_v1",
	"inception_v2",
	"resnet50",
	"shufflenet",
	"SingleRelu",
	"squeezenet_old",
	"vgg19",
	"zfnet",
}

// DefaultCoverage returns the coverage policy over the standard safelist.
func DefaultCoverage() ml.CoveragePolicy {
	return ml.NewCoveragePolicy(coverageSafelist...)
}
