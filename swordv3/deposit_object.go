package swordv3

// DepositObject is everything one deposit attempt sends: the
// metadata, the local files to append in order, and the status
// document from the previous attempt, if there was one.
type DepositObject struct {
	Metadata    *MetadataDocument
	FilePaths   []string
	PriorStatus *StatusDocument
}

// IsReplace returns true if a previous attempt created the object,
// in which case this attempt replaces it instead of creating a new one.
func (obj *DepositObject) IsReplace() bool {
	return obj.PriorStatus != nil && obj.PriorStatus.ObjectId() != ""
}

// ObjectURL returns the URL of the previously created object, or
// an empty string for a first deposit.
func (obj *DepositObject) ObjectURL() string {
	if obj.PriorStatus == nil {
		return ""
	}
	return obj.PriorStatus.ObjectId()
}
