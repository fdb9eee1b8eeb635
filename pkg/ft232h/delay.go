package ft232h

import "time"

// Delay blocks the calling goroutine. It holds no device state.
type Delay struct{}

func (Delay) DelayMs(ms uint32) { time.Sleep(time.Duration(ms) * time.Millisecond) }

func (Delay) DelayUs(us uint32) { time.Sleep(time.Duration(us) * time.Microsecond) }

func (Delay) Sleep(d time.Duration) { time.Sleep(d) }
