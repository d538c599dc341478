package model

// 单位换算
const (
	KiloPascal      = 1e3  // kPa -> Pa
	WattPerSquareCm = 1e4  // W/cm² -> W/m²
	Millimetre      = 1e-3 // mm -> m
)

// 动压一致性检查的相对容差，P_stag = P + P_dyn
const PressureTolerance = 1e-3

// 驻点类型
const (
	Hemisphere = "hemisphere"
	FlatFace   = "flat"
)

// Barker 修正
const (
	BarkerNone     = "none"
	BarkerHomann   = "homann"
	BarkerCarleton = "carleton"
)
