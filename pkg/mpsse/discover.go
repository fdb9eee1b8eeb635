package mpsse

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/gousb"
)

// Enumerate lists the FTDI devices attached to the host. Devices that cannot
// be opened (typically claimed by a kernel driver or another process) are
// still reported from their descriptor.
func Enumerate(ctx context.Context) ([]DeviceInfo, error) {
	usb := gousb.NewContext()
	defer usb.Close()

	var results []DeviceInfo
	devs, err := usb.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		select {
		case <-ctx.Done():
			return false
		default:
		}
		if desc.Vendor != VendorIDFTDI {
			return false
		}
		results = append(results, DeviceInfo{
			Type:      TypeName(uint16(desc.Product)),
			VendorID:  uint16(desc.Vendor),
			ProductID: uint16(desc.Product),
			Bus:       desc.Bus,
			Address:   desc.Address,
		})
		return true
	})
	for _, dev := range devs {
		full := describe(dev)
		for i := range results {
			if results[i].Bus == full.Bus && results[i].Address == full.Address {
				results[i] = full
			}
		}
		dev.Close()
	}
	if err != nil && !errors.Is(err, gousb.ErrorAccess) {
		return results, fmt.Errorf("failed to enumerate devices: %w", err)
	}
	if ctx.Err() != nil {
		return results, ctx.Err()
	}
	return results, nil
}
