package models

// MedicalInfo holds the structured fields extracted from a processed report.
// Pointer fields distinguish "not present in the report" from empty values.
type MedicalInfo struct {
	PatientName     *string      `bson:"patient_name,omitempty" json:"patient_name,omitempty"`
	PatientAge      *string      `bson:"patient_age,omitempty" json:"patient_age,omitempty"`
	PatientGender   *string      `bson:"patient_gender,omitempty" json:"patient_gender,omitempty"`
	ReportDate      *string      `bson:"report_date,omitempty" json:"report_date,omitempty"`
	ReportType      *string      `bson:"report_type,omitempty" json:"report_type,omitempty"`
	Diagnosis       *string      `bson:"diagnosis,omitempty" json:"diagnosis,omitempty"`
	KeyFindings     []string     `bson:"key_findings,omitempty" json:"key_findings,omitempty"`
	Recommendations []string     `bson:"recommendations,omitempty" json:"recommendations,omitempty"`
	TestResults     []TestResult `bson:"test_results,omitempty" json:"test_results,omitempty"`
}

// TestResult is a single measured value from the report
type TestResult struct {
	TestName       string `bson:"test_name" json:"test_name"`
	Value          string `bson:"value" json:"value"`
	Unit           string `bson:"unit,omitempty" json:"unit,omitempty"`
	ReferenceRange string `bson:"reference_range,omitempty" json:"reference_range,omitempty"`
	Flag           string `bson:"flag,omitempty" json:"flag,omitempty"` // normal, high, low
}
