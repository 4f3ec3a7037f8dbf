package domain

// KeyPrefix is the default namespace for every key written to the store.
const KeyPrefix = "assessdex:"

// UnknownAssessmentName is reported when an upload did not carry an assessment name.
const UnknownAssessmentName = "Unknown Assessment"
