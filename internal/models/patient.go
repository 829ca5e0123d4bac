package models

// PatientStatus is the encounter status shown on the patient list
type PatientStatus string

const (
	PatientStatusObservation      PatientStatus = "Observation"
	PatientStatusInpatient        PatientStatus = "Inpatient"
	PatientStatusPendingDischarge PatientStatus = "Pending Discharge"
	PatientStatusDischarged       PatientStatus = "Discharged"
)

// Patient is external data consumed read-only
type Patient struct {
	ID          string        `json:"id" yaml:"id"`
	Name        string        `json:"name" yaml:"name"`
	MRN         string        `json:"mrn" yaml:"mrn"`
	DOB         string        `json:"dob" yaml:"dob"`
	Location    string        `json:"location" yaml:"location"`
	Status      PatientStatus `json:"status" yaml:"status"`
	Age         int           `json:"age" yaml:"age"`
	Gender      string        `json:"gender" yaml:"gender"` // "M" or "F"
	EncounterID string        `json:"encounterId" yaml:"encounter_id"`
	AdmittedAt  string        `json:"admittedAt" yaml:"admitted_at"` // "2006-01-02 15:04"
}
