package searchparam

// ---------------------------------------------------------------------------
// Defaults: common FHIR R4 search parameters with element type metadata
// ---------------------------------------------------------------------------

// Defaults returns the built-in search parameters registered on start-up.
// Parameters whose element types are primitives (status, gender, ...) are
// listed so that searching them is tolerated, but they are not token-indexed.
func Defaults() []*Definition {
	return []*Definition{
		// ---------------------------------------------------------------
		// Cross-resource
		// ---------------------------------------------------------------
		{
			URL:          "http://hl7.org/fhir/SearchParameter/Resource-tag",
			Name:         "ResourceTag",
			Code:         "_tag",
			Base:         []string{"Resource"},
			Type:         TypeToken,
			Expression:   "Resource.meta.tag",
			ElementTypes: []string{"Coding"},
		},
		{
			URL:          "http://hl7.org/fhir/SearchParameter/Resource-security",
			Name:         "ResourceSecurity",
			Code:         "_security",
			Base:         []string{"Resource"},
			Type:         TypeToken,
			Expression:   "Resource.meta.security",
			ElementTypes: []string{"Coding"},
		},

		// ---------------------------------------------------------------
		// Patient
		// ---------------------------------------------------------------
		{
			URL:          "http://hl7.org/fhir/SearchParameter/Patient-identifier",
			Name:         "PatientIdentifier",
			Code:         "identifier",
			Base:         []string{"Patient"},
			Type:         TypeToken,
			Expression:   "Patient.identifier",
			ElementTypes: []string{"Identifier"},
		},
		{
			URL:          "http://hl7.org/fhir/SearchParameter/individual-telecom",
			Name:         "PatientTelecom",
			Code:         "telecom",
			Base:         []string{"Patient", "Practitioner"},
			Type:         TypeToken,
			Expression:   "Patient.telecom | Practitioner.telecom",
			ElementTypes: []string{"ContactPoint"},
		},
		{
			URL:          "http://hl7.org/fhir/SearchParameter/individual-email",
			Name:         "PatientEmail",
			Code:         "email",
			Base:         []string{"Patient", "Practitioner"},
			Type:         TypeToken,
			Expression:   "Patient.telecom.where(system='email') | Practitioner.telecom.where(system='email')",
			ElementTypes: []string{"ContactPoint"},
		},
		{
			URL:          "http://hl7.org/fhir/SearchParameter/individual-phone",
			Name:         "PatientPhone",
			Code:         "phone",
			Base:         []string{"Patient", "Practitioner"},
			Type:         TypeToken,
			Expression:   "Patient.telecom.where(system='phone') | Practitioner.telecom.where(system='phone')",
			ElementTypes: []string{"ContactPoint"},
		},
		{
			URL:          "http://hl7.org/fhir/SearchParameter/Patient-language",
			Name:         "PatientLanguage",
			Code:         "language",
			Base:         []string{"Patient"},
			Type:         TypeToken,
			Expression:   "Patient.communication.language",
			ElementTypes: []string{"CodeableConcept"},
		},
		{
			URL:          "http://hl7.org/fhir/SearchParameter/individual-gender",
			Name:         "PatientGender",
			Code:         "gender",
			Base:         []string{"Patient", "Practitioner"},
			Type:         TypeToken,
			Expression:   "Patient.gender | Practitioner.gender",
			ElementTypes: []string{"code"},
		},
		{
			URL:          "http://hl7.org/fhir/SearchParameter/Patient-general-practitioner",
			Name:         "PatientGeneralPractitioner",
			Code:         "general-practitioner",
			Base:         []string{"Patient"},
			Type:         TypeReference,
			Expression:   "Patient.generalPractitioner",
			Target:       []string{"Organization", "Practitioner", "PractitionerRole"},
			ElementTypes: []string{"Reference"},
		},
		{
			URL:          "http://hl7.org/fhir/SearchParameter/Patient-organization",
			Name:         "PatientOrganization",
			Code:         "organization",
			Base:         []string{"Patient"},
			Type:         TypeReference,
			Expression:   "Patient.managingOrganization",
			Target:       []string{"Organization"},
			ElementTypes: []string{"Reference"},
		},

		// ---------------------------------------------------------------
		// Practitioner / Organization
		// ---------------------------------------------------------------
		{
			URL:          "http://hl7.org/fhir/SearchParameter/Practitioner-identifier",
			Name:         "PractitionerIdentifier",
			Code:         "identifier",
			Base:         []string{"Practitioner"},
			Type:         TypeToken,
			Expression:   "Practitioner.identifier",
			ElementTypes: []string{"Identifier"},
		},
		{
			URL:          "http://hl7.org/fhir/SearchParameter/Organization-identifier",
			Name:         "OrganizationIdentifier",
			Code:         "identifier",
			Base:         []string{"Organization"},
			Type:         TypeToken,
			Expression:   "Organization.identifier",
			ElementTypes: []string{"Identifier"},
		},
		{
			URL:          "http://hl7.org/fhir/SearchParameter/Organization-type",
			Name:         "OrganizationType",
			Code:         "type",
			Base:         []string{"Organization"},
			Type:         TypeToken,
			Expression:   "Organization.type",
			ElementTypes: []string{"CodeableConcept"},
		},

		// ---------------------------------------------------------------
		// Observation
		// ---------------------------------------------------------------
		{
			URL:          "http://hl7.org/fhir/SearchParameter/clinical-code",
			Name:         "ObservationCode",
			Code:         "code",
			Base:         []string{"Observation", "Condition"},
			Type:         TypeToken,
			Expression:   "Observation.code | Condition.code",
			ElementTypes: []string{"CodeableConcept"},
		},
		{
			URL:          "http://hl7.org/fhir/SearchParameter/clinical-identifier",
			Name:         "ObservationIdentifier",
			Code:         "identifier",
			Base:         []string{"Observation", "Condition", "Encounter", "MedicationRequest"},
			Type:         TypeToken,
			Expression:   "Observation.identifier | Condition.identifier | Encounter.identifier | MedicationRequest.identifier",
			ElementTypes: []string{"Identifier"},
		},
		{
			URL:          "http://hl7.org/fhir/SearchParameter/Observation-category",
			Name:         "ObservationCategory",
			Code:         "category",
			Base:         []string{"Observation", "Condition"},
			Type:         TypeToken,
			Expression:   "Observation.category | Condition.category",
			ElementTypes: []string{"CodeableConcept"},
		},
		{
			URL:          "http://hl7.org/fhir/SearchParameter/Observation-value-concept",
			Name:         "ObservationValueConcept",
			Code:         "value-concept",
			Base:         []string{"Observation"},
			Type:         TypeToken,
			Expression:   "(Observation.value as CodeableConcept)",
			ElementTypes: []string{"CodeableConcept"},
		},
		{
			URL:          "http://hl7.org/fhir/SearchParameter/Observation-combo-code",
			Name:         "ObservationComboCode",
			Code:         "combo-code",
			Base:         []string{"Observation"},
			Type:         TypeToken,
			Expression:   "Observation.code | Observation.component.code",
			ElementTypes: []string{"CodeableConcept"},
		},
		{
			URL:          "http://hl7.org/fhir/SearchParameter/Observation-status",
			Name:         "ObservationStatus",
			Code:         "status",
			Base:         []string{"Observation"},
			Type:         TypeToken,
			Expression:   "Observation.status",
			ElementTypes: []string{"code"},
		},
		{
			URL:          "http://hl7.org/fhir/SearchParameter/clinical-patient",
			Name:         "ClinicalPatient",
			Code:         "patient",
			Base:         []string{"Observation", "Condition", "Encounter", "MedicationRequest"},
			Type:         TypeReference,
			Expression:   "Observation.subject.where(resolve() is Patient) | Condition.subject.where(resolve() is Patient) | Encounter.subject.where(resolve() is Patient) | MedicationRequest.subject.where(resolve() is Patient)",
			Target:       []string{"Patient"},
			ElementTypes: []string{"Reference"},
		},
		{
			URL:          "http://hl7.org/fhir/SearchParameter/Observation-subject",
			Name:         "ObservationSubject",
			Code:         "subject",
			Base:         []string{"Observation", "Condition", "Encounter", "MedicationRequest"},
			Type:         TypeReference,
			Expression:   "Observation.subject | Condition.subject | Encounter.subject | MedicationRequest.subject",
			Target:       []string{"Patient", "Group", "Device", "Location"},
			ElementTypes: []string{"Reference"},
		},
		{
			URL:          "http://hl7.org/fhir/SearchParameter/Observation-date",
			Name:         "ObservationDate",
			Code:         "date",
			Base:         []string{"Observation"},
			Type:         TypeDate,
			Expression:   "Observation.effective",
			ElementTypes: []string{"dateTime", "Period"},
		},

		// ---------------------------------------------------------------
		// Encounter
		// ---------------------------------------------------------------
		{
			URL:          "http://hl7.org/fhir/SearchParameter/Encounter-class",
			Name:         "EncounterClass",
			Code:         "class",
			Base:         []string{"Encounter"},
			Type:         TypeToken,
			Expression:   "Encounter.class",
			ElementTypes: []string{"Coding"},
		},
		{
			URL:          "http://hl7.org/fhir/SearchParameter/clinical-type",
			Name:         "EncounterType",
			Code:         "type",
			Base:         []string{"Encounter"},
			Type:         TypeToken,
			Expression:   "Encounter.type",
			ElementTypes: []string{"CodeableConcept"},
		},
		{
			URL:          "http://hl7.org/fhir/SearchParameter/Encounter-status",
			Name:         "EncounterStatus",
			Code:         "status",
			Base:         []string{"Encounter"},
			Type:         TypeToken,
			Expression:   "Encounter.status",
			ElementTypes: []string{"code"},
		},

		// ---------------------------------------------------------------
		// Condition
		// ---------------------------------------------------------------
		{
			URL:          "http://hl7.org/fhir/SearchParameter/Condition-clinical-status",
			Name:         "ConditionClinicalStatus",
			Code:         "clinical-status",
			Base:         []string{"Condition"},
			Type:         TypeToken,
			Expression:   "Condition.clinicalStatus",
			ElementTypes: []string{"CodeableConcept"},
		},
		{
			URL:          "http://hl7.org/fhir/SearchParameter/Condition-severity",
			Name:         "ConditionSeverity",
			Code:         "severity",
			Base:         []string{"Condition"},
			Type:         TypeToken,
			Expression:   "Condition.severity",
			ElementTypes: []string{"CodeableConcept"},
		},

		// ---------------------------------------------------------------
		// MedicationRequest
		// ---------------------------------------------------------------
		{
			URL:          "http://hl7.org/fhir/SearchParameter/medications-code",
			Name:         "MedicationRequestCode",
			Code:         "code",
			Base:         []string{"MedicationRequest"},
			Type:         TypeToken,
			Expression:   "(MedicationRequest.medication as CodeableConcept)",
			ElementTypes: []string{"CodeableConcept"},
		},
		{
			URL:          "http://hl7.org/fhir/SearchParameter/MedicationRequest-intent",
			Name:         "MedicationRequestIntent",
			Code:         "intent",
			Base:         []string{"MedicationRequest"},
			Type:         TypeToken,
			Expression:   "MedicationRequest.intent",
			ElementTypes: []string{"code"},
		},
	}
}
