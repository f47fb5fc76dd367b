package pose

import (
	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"

	"panel-locator/pkg/geometry"
)

// DefaultPanelHeight is the physical panel height in meters.
const DefaultPanelHeight = 0.3

// ErrDegenerateRegion is returned for a panel region with no pixel height.
var ErrDegenerateRegion = errors.New("panel region has zero height")

// Pose is the panel position in the camera frame.
type Pose struct {
	// Position is the published convention: X and Y negated relative to the
	// raw back-projection, Z unchanged.
	Position r3.Vector `json:"position"`

	// Ray is the raw back-projected point scaled to depth Z.
	Ray r3.Vector `json:"ray"`

	// Pixel is the panel center in (x, y) image coordinates.
	Pixel [2]int `json:"pixel"`
}

// Estimator converts a panel bounding region into a camera-frame point.
type Estimator struct {
	panelHeight float64
}

// NewEstimator creates an estimator for a panel of the given physical height.
func NewEstimator(panelHeight float64) (*Estimator, error) {
	if panelHeight <= 0 {
		return nil, errors.Errorf("panel height must be positive, got %v", panelHeight)
	}
	return &Estimator{panelHeight: panelHeight}, nil
}

// PanelHeight returns the physical panel height used for depth.
func (e *Estimator) PanelHeight() float64 {
	return e.panelHeight
}

// Estimate back-projects the center of region to the depth implied by the
// region's pixel height, assuming a fronto-parallel panel.
func (e *Estimator) Estimate(region geometry.RectInt, cam CameraModel) (Pose, error) {
	if region.Height <= 0 {
		return Pose{}, ErrDegenerateRegion
	}
	if err := cam.CheckValid(); err != nil {
		return Pose{}, err
	}

	z := cam.Fx * (e.panelHeight / float64(region.Height))
	center := region.Center()

	kInv, err := projectionPseudoInverse(cam)
	if err != nil {
		return Pose{}, err
	}

	// pixel is fed as (row, column, 1)
	pixel := mat.NewVecDense(3, []float64{float64(center.Y), float64(center.X), 1})
	var hom mat.VecDense
	hom.MulVec(kInv, pixel)
	if hom.AtVec(2) == 0 {
		return Pose{}, errors.New("back-projected ray has no depth component")
	}
	hom.ScaleVec(z/hom.AtVec(2), &hom)

	ray := r3.Vector{X: hom.AtVec(0), Y: hom.AtVec(1), Z: hom.AtVec(2)}
	return Pose{
		Position: r3.Vector{X: -ray.X, Y: -ray.Y, Z: ray.Z},
		Ray:      ray,
		Pixel:    [2]int{center.X, center.Y},
	}, nil
}

// ProjectionMatrix returns the 3x4 projection K with zero translation.
func ProjectionMatrix(cam CameraModel) *mat.Dense {
	return mat.NewDense(3, 4, []float64{
		cam.Fx, 0, cam.U0, 0,
		0, cam.Fy, cam.V0, 0,
		0, 0, 1, 0,
	})
}

// projectionPseudoInverse returns the Moore-Penrose inverse Kᵀ(KKᵀ)⁻¹ of the
// full-row-rank projection matrix.
func projectionPseudoInverse(cam CameraModel) (*mat.Dense, error) {
	k := ProjectionMatrix(cam)

	var kkt mat.Dense
	kkt.Mul(k, k.T())

	var kktInv mat.Dense
	if err := kktInv.Inverse(&kkt); err != nil {
		return nil, errors.Wrap(err, "projection matrix is singular")
	}

	var pinv mat.Dense
	pinv.Mul(k.T(), &kktInv)
	return &pinv, nil
}
