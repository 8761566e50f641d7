package preferences

// The remote-work vocabulary is translated with fixed tables. The reverse
// direction is lossy: hybrid and either both read back as any, and any is
// written as either, so a stored hybrid does not survive a save.
var (
	remoteToStore = map[RemotePreference]RemoteWork{
		RemoteOnly: WorkRemote,
		RemoteNo:   WorkOnsite,
		RemoteAny:  WorkEither,
	}
	remoteFromStore = map[RemoteWork]RemotePreference{
		WorkRemote: RemoteOnly,
		WorkOnsite: RemoteNo,
		WorkHybrid: RemoteAny,
		WorkEither: RemoteAny,
	}
)

// RemoteToStore maps a form value to the stored vocabulary. Unknown values
// are written as either.
func RemoteToStore(p RemotePreference) RemoteWork {
	if v, ok := remoteToStore[p]; ok {
		return v
	}
	return WorkEither
}

// RemoteFromStore maps a stored value to the form vocabulary. Unknown and
// absent values read as any.
func RemoteFromStore(w RemoteWork) RemotePreference {
	if v, ok := remoteFromStore[w]; ok {
		return v
	}
	return RemoteAny
}

// ToStore converts the edited form into the persisted shape. Sets become
// ordered sequences in first-seen order.
func ToStore(p Preferences) Record {
	return Record{
		LocationPreference: p.Location,
		RemotePreference:   RemoteToStore(p.RemotePreference),
		JobTypes:           uniq(p.JobTypes),
		MinSalary:          p.MinSalary,
		Industries:         uniq(p.Industries),
		ExperienceLevel:    p.ExperienceLevel,
	}
}

// FromStore converts a persisted record into the form, filling absent
// fields with the form defaults. An unknown experience level reads as the
// default so the form stays savable.
func FromStore(r Record) Preferences {
	p := Defaults()

	p.Location = r.LocationPreference
	p.RemotePreference = RemoteFromStore(r.RemotePreference)
	if r.JobTypes != nil {
		p.JobTypes = uniq(r.JobTypes)
	}
	if r.MinSalary > 0 {
		p.MinSalary = r.MinSalary
	}
	if r.Industries != nil {
		p.Industries = uniq(r.Industries)
	}
	if level, err := ParseExperienceLevel(string(r.ExperienceLevel)); err == nil {
		p.ExperienceLevel = level
	}

	return p
}
