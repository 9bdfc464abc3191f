// SPDX-FileCopyrightText: 2024 The qedge Authors
//
// SPDX-License-Identifier: GPL-3.0-or-later

package quic

// burstController computes how many bytes a TX pump is allowed to emit in
// one send cycle, shrinking the allowance when loss increases and always
// rounding down to a whole number of datagrams so GSO can batch
// equally-sized segments plus at most one smaller tail.
type burstController struct {
	lossRate        float64
	maxSendBurst    int
	maxDatagramSize int
}

// newBurstController sets up a controller for a connection whose
// configured UDP payload size is maxDatagramSize.
func newBurstController(maxDatagramSize int) *burstController {
	return &burstController{
		lossRate:        0,
		maxSendBurst:    MaxIPv6BufSize,
		maxDatagramSize: maxDatagramSize,
	}
}

// maxSendBurstBytes returns the number of bytes the TX pump may write this
// cycle, given the engine's current stats and send quantum.
func (b *burstController) maxSendBurstBytes(stats Stats, sendQuantum int) int {
	var lossRate float64
	if stats.Sent != 0 {
		lossRate = float64(stats.Lost) / float64(stats.Sent)
	}

	// Shrink the burst by 25% any time loss has risen by more than 0.1%
	// since the last observation, clamped to a floor of 10 datagrams.
	if lossRate > b.lossRate+0.001 {
		b.maxSendBurst = b.maxSendBurst / 4 * 3
		if floor := 10 * b.maxDatagramSize; b.maxSendBurst < floor {
			b.maxSendBurst = floor
		}
		b.lossRate = lossRate
	}

	burst := sendQuantum
	if b.maxSendBurst < burst {
		burst = b.maxSendBurst
	}
	return burst / b.maxDatagramSize * b.maxDatagramSize
}
