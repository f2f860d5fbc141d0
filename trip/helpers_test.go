package trip

import "time"

func timeMonth(m int) time.Month { return time.Month(m) }

func fptr(v float64) *float64 { return &v }

func iptr(v int) *int { return &v }
