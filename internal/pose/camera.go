// Package pose estimates the panel's camera-frame position from its pixel
// bounding region, the camera intrinsics and the known physical panel height.
package pose

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/pkg/errors"
)

// ErrNoIntrinsics is returned when camera intrinsics are missing or invalid.
var ErrNoIntrinsics = errors.New("camera intrinsic parameters are not available")

// NewNoIntrinsicsError wraps ErrNoIntrinsics with a reason.
func NewNoIntrinsicsError(msg string) error {
	return errors.Wrap(ErrNoIntrinsics, msg)
}

// CameraModel holds the pinhole parameters the estimator places into the
// projection matrix K = [[Fx 0 U0 0] [0 Fy V0 0] [0 0 1 0]].
type CameraModel struct {
	Width  int     `json:"width"`
	Height int     `json:"height"`
	Fx     float64 `json:"fx"`
	Fy     float64 `json:"fy"`
	U0     float64 `json:"u0"`
	V0     float64 `json:"v0"`
}

// CameraInfo is the on-disk camera description: image size plus the row-major
// 3x3 intrinsic matrix K, laid out like a ROS sensor_msgs/CameraInfo.
type CameraInfo struct {
	Width  int        `json:"width"`
	Height int        `json:"height"`
	K      [9]float64 `json:"K"`
}

// FromCameraInfo reads fx = K[0], fy = K[4], u0 = K[5], v0 = K[2]. u0 carries the
// principal point row and v0 the column, pairing with the (row, column)
// pixel order used during back-projection.
func FromCameraInfo(info CameraInfo) CameraModel {
	return CameraModel{
		Width:  info.Width,
		Height: info.Height,
		Fx:     info.K[0],
		Fy:     info.K[4],
		U0:     info.K[5],
		V0:     info.K[2],
	}
}

// CheckValid checks that the model can be used for back-projection.
func (c *CameraModel) CheckValid() error {
	if c == nil {
		return NewNoIntrinsicsError("intrinsics do not exist")
	}
	if c.Width <= 0 || c.Height <= 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("invalid size (%d, %d)", c.Width, c.Height))
	}
	if c.Fx <= 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("invalid focal length fx = %v", c.Fx))
	}
	if c.Fy <= 0 {
		return NewNoIntrinsicsError(fmt.Sprintf("invalid focal length fy = %v", c.Fy))
	}
	return nil
}

// LoadCameraInfo reads a CameraInfo JSON file and converts it to a CameraModel.
func LoadCameraInfo(path string) (CameraModel, error) {
	//nolint:gosec
	data, err := os.ReadFile(path)
	if err != nil {
		return CameraModel{}, errors.Wrap(err, "error reading camera info")
	}
	var info CameraInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return CameraModel{}, errors.Wrapf(err, "error parsing camera info %s", path)
	}
	model := FromCameraInfo(info)
	if err := model.CheckValid(); err != nil {
		return CameraModel{}, err
	}
	return model, nil
}
