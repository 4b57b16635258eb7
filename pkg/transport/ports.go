// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package transport

import (
	"fmt"

	"go.bug.st/serial/enumerator"
)

// PortInfo describes a serial port found on the host
type PortInfo struct {
	Name         string
	IsUSB        bool
	VID          string
	PID          string
	SerialNumber string
	Product      string
}

// String formats the port for listings
func (p PortInfo) String() string {
	if !p.IsUSB {
		return p.Name
	}
	desc := fmt.Sprintf("%s [USB %s:%s]", p.Name, p.VID, p.PID)
	if p.Product != "" {
		desc += " " + p.Product
	}
	if p.SerialNumber != "" {
		desc += " sn=" + p.SerialNumber
	}
	return desc
}

// ListPorts enumerates the serial ports available on the host
func ListPorts() ([]PortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate serial ports: %w", err)
	}

	ports := make([]PortInfo, 0, len(details))
	for _, d := range details {
		ports = append(ports, PortInfo{
			Name:         d.Name,
			IsUSB:        d.IsUSB,
			VID:          d.VID,
			PID:          d.PID,
			SerialNumber: d.SerialNumber,
			Product:      d.Product,
		})
	}
	return ports, nil
}

// FindPort resolves a USB product description to a device name, the way
// devices are often named in setups with several adapters. Names that match
// no product are returned unchanged.
func FindPort(nameOrProduct string) string {
	ports, err := ListPorts()
	if err != nil {
		return nameOrProduct
	}
	for _, p := range ports {
		if p.Name == nameOrProduct {
			return p.Name
		}
		if p.Product != "" && p.Product == nameOrProduct {
			return p.Name
		}
	}
	return nameOrProduct
}
