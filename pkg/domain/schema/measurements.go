package schema

import "elncore/pkg/domain"

// Measurement section names.
const (
	HallMeasurementResult          = "HallMeasurementResult"
	HallMeasurementStep            = "HallMeasurementStep"
	IVCurveMeasurement             = "IVCurveMeasurement"
	VariableFieldMeasurement       = "VariableFieldMeasurement"
	VariableTemperatureMeasurement = "VariableTemperatureMeasurement"
	HallMeasurement                = "HallMeasurement"

	PPMSData            = "PPMSData"
	ChannelData         = "ChannelData"
	PPMSStep            = "PPMSStep"
	PPMSTemperatureStep = "PPMSSetTemperatureStep"
	PPMSFieldStep       = "PPMSSetMagneticFieldStep"
	PPMSScanFieldStep   = "PPMSScanFieldStep"
	PPMSScanTempStep    = "PPMSScanTemperatureStep"
	PPMSACTRStep        = "PPMSACTResistanceStep"
	PPMSETORChannel     = "PPMSETOResistanceChannel"
	PPMSETORStep        = "PPMSETOResistanceStep"
	PPMSWaitStep        = "PPMSWaitStep"
	PPMSPositionStep    = "PPMSSetPositionStep"
	PPMSRemarkStep      = "PPMSRemarkStep"
	PPMSShutdownStep    = "PPMSShutdownStep"
	PPMSMeasurement     = "PPMSMeasurement"

	ReflectanceWavelengthTransient = "ReflectanceWavelengthTransient"
	LayTecResult                   = "LayTecEpiTTResult"
	LayTecMeasurement              = "LayTecEpiTTMeasurement"

	SettingOverRange = "SettingOverWavelengthRange"
	Attenuator       = "Attenuator"
	UVVisSettings    = "UVVisNirTransmissionSettings"
	UVVisResult      = "UVVisNirTransmissionResult"
	UVVisMeasurement = "UVVisNirTransmission"

	DepthProfile    = "DepthProfile"
	SIMSResult      = "SIMSResult"
	SIMSMeasurement = "SIMSMeasurement"

	XRDResult      = "XRDResult"
	XRDMeasurement = "XRDMeasurement"

	SEMMeasurement = "SEMMeasurement"
)

// PPMS sequence enumerations, index-addressed by the .seq positional fields.
var (
	PPMSTemperatureModes = []string{"Fast Settle", "No Overshoot"}
	PPMSFieldApproaches  = []string{"Linear", "No Overshoot", "Oscillate"}
	PPMSFieldEndModes    = []string{"Persistent", "Driven"}
	PPMSSpacingModes     = []string{"Uniform", "H*H", "H^1/2", "1/H", "log(H)"}
	PPMSPositionModes    = []string{"Move to position", "Move to index and define", "Redefine present position"}
	PPMSETORModes        = []string{"Do not measure", "2-wire", "4-wire", "Differential", "Pulse", "Low-frequency"}
)

func measurements() []domain.SectionDef {
	return []domain.SectionDef{
		{
			Name:    HallMeasurementResult,
			Extends: []string{MeasurementResult},
			Quantities: []domain.QuantityDef{
				disp(num("resistivity", "ohm*m"), "ohm*cm"),
				disp(num("mobility", "m^2/(V*s)"), "cm^2/(V*s)"),
				disp(num("carrier_concentration", "1/m^3"), "1/cm^3"),
				disp(num("hall_coefficient", "m^3/C"), "cm^3/C"),
				num("sheet_resistance", "ohm"),
				disp(num("temperature", "K"), "K"),
				num("magnetic_field", "T"),
			},
		},
		{
			Name: HallMeasurementStep,
			Quantities: []domain.QuantityDef{
				integer("step"),
				str("measurement_type"),
				disp(num("temperature", "K"), "K"),
				num("maximum_field", "T"),
				num("minimum_field", "T"),
				num("field_step", "T"),
				boolean("field_at_zero_after"),
			},
			SubSections: []domain.SubSectionDef{many("parameters", Parameter)},
		},
		{
			Name:    IVCurveMeasurement,
			Extends: []string{HallMeasurementStep},
			Quantities: []domain.QuantityDef{
				vec("current", "A"),
				vec("voltage", "V"),
				str("contact_pair"),
			},
		},
		{
			Name:    VariableFieldMeasurement,
			Extends: []string{HallMeasurementStep},
			Quantities: []domain.QuantityDef{
				vec("field", "T"),
				disp(vec("resistivity", "ohm*m"), "ohm*cm"),
				disp(vec("hall_mobility", "m^2/(V*s)"), "cm^2/(V*s)"),
				disp(vec("carrier_density", "1/m^3"), "1/cm^3"),
				disp(vec("hall_coefficient", "m^3/C"), "cm^3/C"),
			},
		},
		{
			Name:    VariableTemperatureMeasurement,
			Extends: []string{VariableFieldMeasurement},
			Quantities: []domain.QuantityDef{
				disp(vec("temperatures", "K"), "K"),
			},
		},
		{
			Name:    HallMeasurement,
			Extends: []string{Measurement},
			Quantities: []domain.QuantityDef{
				str("sample_id"),
				disp(num("sample_thickness", "m"), "um"),
				str("geometry"),
			},
			SubSections: []domain.SubSectionDef{many("measurements", HallMeasurementStep)},
		},
		{
			Name: PPMSData,
			Quantities: []domain.QuantityDef{
				str("name"),
				vec("time_stamp", "s"),
				vec("temperature", "K"),
				vec("magnetic_field", "T"),
				disp(vec("sample_position", "rad"), "deg"),
				disp(vec("chamber_pressure", "Pa"), "Torr"),
				integer("number_of_points"),
			},
		},
		{
			Name: ChannelData,
			Quantities: []domain.QuantityDef{
				str("name"),
				vec("resistance", "ohm"),
				vec("resistance_std_dev", "ohm"),
				disp(vec("resistivity", "ohm*m"), "ohm*cm"),
				disp(vec("resistivity_std_dev", "ohm*m"), "ohm*cm"),
				disp(vec("phase_angle", "rad"), "deg"),
				vec("excitation", "A"),
				vec("ac_current", "A"),
				vec("frequency", "Hz"),
				vec("second_harmonic", ""),
				vec("third_harmonic", ""),
				vec("quadrature_signal", "V"),
				vec("in_phase_signal", "V"),
				vec("voltage", "V"),
				vec("current", "A"),
				vec("gain", ""),
				vec("i_v_harmonic", ""),
				vec("number_of_readings", ""),
			},
		},
		{Name: PPMSStep, Extends: []string{ProcessStep}, Quantities: []domain.QuantityDef{str("command")}},
		{
			Name:    PPMSTemperatureStep,
			Extends: []string{PPMSStep},
			Quantities: []domain.QuantityDef{
				num("temperature_set", "K"),
				disp(num("temperature_rate", "K/s"), "K/min"),
				enum("mode", PPMSTemperatureModes...),
			},
		},
		{
			Name:    PPMSFieldStep,
			Extends: []string{PPMSStep},
			Quantities: []domain.QuantityDef{
				disp(num("field_set", "T"), "Oe"),
				disp(num("field_rate", "T/s"), "Oe/s"),
				enum("approach", PPMSFieldApproaches...),
				enum("end_mode", PPMSFieldEndModes...),
			},
		},
		{
			Name:    PPMSScanFieldStep,
			Extends: []string{PPMSStep},
			Quantities: []domain.QuantityDef{
				disp(num("initial_field", "T"), "Oe"),
				disp(num("final_field", "T"), "Oe"),
				disp(num("field_rate", "T/s"), "Oe/s"),
				integer("number_of_steps"),
				enum("spacing_code", PPMSSpacingModes...),
				enum("approach", PPMSFieldApproaches...),
				enum("end_mode", PPMSFieldEndModes...),
			},
		},
		{
			Name:    PPMSScanTempStep,
			Extends: []string{PPMSStep},
			Quantities: []domain.QuantityDef{
				num("initial_temp", "K"),
				num("final_temp", "K"),
				disp(num("temperature_rate", "K/s"), "K/min"),
				integer("number_of_steps"),
				enum("spacing_code", PPMSSpacingModes...),
				enum("approach", PPMSTemperatureModes...),
			},
		},
		{
			Name:    PPMSACTRStep,
			Extends: []string{PPMSStep},
			Quantities: []domain.QuantityDef{
				integer("channel"),
				disp(num("excitation", "A"), "mA"),
				num("frequency", "Hz"),
				disp(num("duration_time", "s"), "s"),
				integer("number_of_readings"),
				boolean("constant_current_mode"),
				boolean("autorange"),
				boolean("fixed_gain"),
				boolean("second_harmonic"),
				boolean("third_harmonic"),
			},
		},
		{
			Name: PPMSETORChannel,
			Quantities: []domain.QuantityDef{
				integer("channel"),
				enum("mode", PPMSETORModes...),
				disp(num("excitation_amplitude", "A"), "mA"),
				num("excitation_frequency", "Hz"),
				num("averaging_time", "s"),
				str("preamp_range"),
				boolean("preamp_autorange"),
				boolean("preamp_sample_wiring"),
				disp(num("excitation_current_range", "A"), "mA"),
				boolean("current_autorange"),
				boolean("reverse_polarity"),
				num("number_of_readings", ""),
			},
		},
		{
			Name:        PPMSETORStep,
			Extends:     []string{PPMSStep},
			Quantities:  []domain.QuantityDef{num("sample_rate", "s"), boolean("autosave")},
			SubSections: []domain.SubSectionDef{many("channels", PPMSETORChannel)},
		},
		{
			Name:    PPMSWaitStep,
			Extends: []string{PPMSStep},
			Quantities: []domain.QuantityDef{
				num("delay", "s"),
				boolean("condition_temperature"),
				boolean("condition_field"),
				boolean("condition_position"),
				boolean("condition_chamber"),
				enum("on_error_execute", "No Action", "Abort", "Shutdown"),
			},
		},
		{
			Name:    PPMSPositionStep,
			Extends: []string{PPMSStep},
			Quantities: []domain.QuantityDef{
				disp(num("position", "rad"), "deg"),
				enum("mode", PPMSPositionModes...),
				num("index", ""),
				disp(num("speed", "rad/s"), "deg/s"),
			},
		},
		{Name: PPMSRemarkStep, Extends: []string{PPMSStep}, Quantities: []domain.QuantityDef{str("remark_text")}},
		{Name: PPMSShutdownStep, Extends: []string{PPMSStep}},
		{
			Name:    PPMSMeasurement,
			Extends: []string{Measurement},
			Quantities: []domain.QuantityDef{
				str("software"),
				str("sequence_file"),
				str("data_file"),
				str("title"),
			},
			SubSections: []domain.SubSectionDef{
				one("data", PPMSData),
				many("channels", ChannelData),
			},
		},
		{
			Name: ReflectanceWavelengthTransient,
			Quantities: []domain.QuantityDef{
				str("name"),
				disp(num("wavelength", "m"), "nm"),
				vec("raw_intensity", ""),
				vec("autocorrelated_intensity", ""),
				integer("autocorrelation_starting_point"),
				integer("autocorrelation_period"),
			},
		},
		{
			Name:    LayTecResult,
			Extends: []string{MeasurementResult},
			Quantities: []domain.QuantityDef{
				vec("process_time", "s"),
				disp(vec("pyrometer_temperature", "K"), "degC"),
				disp(num("pyrometer_wavelength", "m"), "nm"),
			},
			SubSections: []domain.SubSectionDef{many("reflectance_wavelengths", ReflectanceWavelengthTransient)},
		},
		{
			Name:    LayTecMeasurement,
			Extends: []string{Measurement},
			Quantities: []domain.QuantityDef{
				str("run_id"),
				str("runtype_name"),
				str("module_name"),
				str("wafer_label"),
				str("wafer_zone"),
			},
		},
		{
			Name: SettingOverRange,
			Quantities: []domain.QuantityDef{
				disp(num("wavelength_lower", "m"), "nm"),
				disp(num("wavelength_upper", "m"), "nm"),
				num("value", ""),
				str("value_string"),
				str("unit"),
			},
		},
		{Name: Attenuator, Quantities: []domain.QuantityDef{integer("sample"), integer("reference")}},
		{
			Name: UVVisSettings,
			Quantities: []domain.QuantityDef{
				str("ordinate_type"),
				str("wavelength_unit"),
				disp(vec("monochromator_change_point", "m"), "nm"),
				disp(vec("lamp_change_point", "m"), "nm"),
				disp(vec("detector_change_point", "m"), "nm"),
				boolean("depolarizer"),
			},
			SubSections: []domain.SubSectionDef{
				many("monochromator_slit_width", SettingOverRange),
				many("detector_integration_time", SettingOverRange),
				many("detector_nir_gain", SettingOverRange),
				one("attenuator", Attenuator),
			},
		},
		{
			Name:    UVVisResult,
			Extends: []string{MeasurementResult},
			Quantities: []domain.QuantityDef{
				disp(vec("wavelength", "m"), "nm"),
				vec("transmittance", ""),
				vec("absorbance", ""),
				disp(vec("extinction_coefficient", "1/m"), "1/cm"),
			},
		},
		{
			Name:        UVVisMeasurement,
			Extends:     []string{Measurement},
			Quantities:  []domain.QuantityDef{str("sample_name"), str("instrument_name"), disp(num("sample_thickness", "m"), "mm")},
			SubSections: []domain.SubSectionDef{one("settings", UVVisSettings)},
		},
		{
			Name: DepthProfile,
			Quantities: []domain.QuantityDef{
				str("name"),
				str("element"),
				enum("kind", "qualitative", "quantitative"),
				disp(vec("depth", "m"), "um"),
				disp(vec("intensity", "1/s"), "cps"),
				disp(vec("concentration", "1/m^3"), "1/cm^3"),
			},
		},
		{
			Name:    SIMSResult,
			Extends: []string{MeasurementResult},
			SubSections: []domain.SubSectionDef{
				many("qualitative_profiles", DepthProfile),
				many("quantitative_profiles", DepthProfile),
			},
		},
		{
			Name:       SIMSMeasurement,
			Extends:    []string{Measurement},
			Quantities: []domain.QuantityDef{str("depth_profile"), str("matrix"), str("sample_name")},
		},
		{
			Name:    XRDResult,
			Extends: []string{MeasurementResult},
			Quantities: []domain.QuantityDef{
				disp(vec("two_theta", "rad"), "deg"),
				vec("intensity", ""),
			},
		},
		{
			Name:       XRDMeasurement,
			Extends:    []string{Measurement},
			Quantities: []domain.QuantityDef{disp(num("wavelength", "m"), "angstrom"), str("scan_axis")},
		},
		{
			Name:    SEMMeasurement,
			Extends: []string{Measurement},
			Quantities: []domain.QuantityDef{
				integer("image_width"),
				integer("image_height"),
				str("vendor"),
				disp(num("accelerating_voltage", "V"), "kV"),
				disp(num("working_distance", "m"), "mm"),
				num("magnification", ""),
				disp(num("pixel_size", "m"), "nm"),
				str("detector"),
			},
		},
	}
}
