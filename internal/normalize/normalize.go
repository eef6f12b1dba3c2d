// Package normalize holds the derivations run on sections after parsing:
// composition rebalancing and formula synthesis, formula inference,
// reflectance smoothing, step chronology, workflow links, vapour pressure
// and sample-cut children.
package normalize

import (
	"elncore/pkg/domain/schema"
	"elncore/pkg/pluginapi"
)

// Register binds the built-in normalizers to their section types.
func Register(reg pluginapi.Registry) {
	reg.RegisterNormalizer(schema.CompositeSystem, pluginapi.NormalizerFunc(InferComposition))
	reg.RegisterNormalizer(schema.MixedCrystal, pluginapi.NormalizerFunc(MixedCrystalComposition))
	reg.RegisterNormalizer(schema.PureSubstance, pluginapi.NormalizerFunc(VapourPressure))
	reg.RegisterNormalizer(schema.Activity, pluginapi.NormalizerFunc(StepChronology))
	reg.RegisterNormalizer(schema.GrowthMovpe, pluginapi.NormalizerFunc(GrowthLinks))
	reg.RegisterNormalizer(schema.LayTecResult, pluginapi.NormalizerFunc(SmoothReflectance))
	reg.RegisterNormalizer(schema.SampleCut, pluginapi.NormalizerFunc(SampleCutChildren))
}
