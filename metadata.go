package mobi

import "strings"

// field returns the primary value of a string EXTH tag, or ErrFieldAbsent.
func (d *Document) field(tag ExthTag) (string, error) {
	if v, ok := d.exth.first(tag); ok && v != "" {
		return v, nil
	}
	return "", ErrFieldAbsent
}

// Title returns the book title. It prefers the EXTH updated title, then the
// full name stored in the MOBI header, then the PDB database name.
func (d *Document) Title() (string, error) {
	if v, err := d.field(ExthUpdatedTitle); err == nil {
		return v, nil
	}
	if d.h.FullName != "" {
		return d.decode([]byte(d.h.FullName)), nil
	}
	if name := strings.TrimSpace(d.c.name); name != "" {
		return d.decode([]byte(name)), nil
	}
	return "", ErrFieldAbsent
}

// Author returns the primary author (first EXTH 100 record).
func (d *Document) Author() (string, error) { return d.field(ExthAuthor) }

// Publisher returns the publisher (EXTH 101).
func (d *Document) Publisher() (string, error) { return d.field(ExthPublisher) }

// Imprint returns the imprint (EXTH 102).
func (d *Document) Imprint() (string, error) { return d.field(ExthImprint) }

// Description returns the description (EXTH 103).
func (d *Document) Description() (string, error) { return d.field(ExthDescription) }

// ISBN returns the ISBN (EXTH 104).
func (d *Document) ISBN() (string, error) { return d.field(ExthISBN) }

// Subject returns the first subject (EXTH 105).
func (d *Document) Subject() (string, error) { return d.field(ExthSubject) }

// PublishDate returns the raw publishing date (EXTH 106).
func (d *Document) PublishDate() (string, error) { return d.field(ExthPublishDate) }

// Review returns the review (EXTH 107).
func (d *Document) Review() (string, error) { return d.field(ExthReview) }

// Contributor returns the contributor (EXTH 108).
func (d *Document) Contributor() (string, error) { return d.field(ExthContributor) }

// Copyright returns the rights statement (EXTH 109).
func (d *Document) Copyright() (string, error) { return d.field(ExthRights) }

// ASIN returns the Amazon identifier (EXTH 113).
func (d *Document) ASIN() (string, error) { return d.field(ExthASIN) }

// Language returns the language from EXTH 524, falling back to the tag
// derived from the header locale.
func (d *Document) Language() (string, error) {
	if v, err := d.field(ExthLanguage); err == nil {
		return v, nil
	}
	if d.h.HasMOBI {
		if tag, ok := localeTag(d.h.Locale); ok {
			return tag, nil
		}
	}
	return "", ErrFieldAbsent
}

// Metadata returns all extracted metadata in one value. Slices are copies.
func (d *Document) Metadata() Metadata {
	md := Metadata{
		Authors:  d.exth.all(ExthAuthor),
		Subjects: d.exth.all(ExthSubject),
		Encoding: int(d.h.Encoding),
		Version:  int(d.h.Version),
		Type:     int(d.h.Type),
	}
	md.Title, _ = d.Title()
	md.Publisher, _ = d.Publisher()
	md.Imprint, _ = d.Imprint()
	md.Description, _ = d.Description()
	md.ISBN, _ = d.ISBN()
	md.PublishDate, _ = d.PublishDate()
	md.Review, _ = d.Review()
	md.Contributor, _ = d.Contributor()
	md.Copyright, _ = d.Copyright()
	md.Source, _ = d.field(ExthSource)
	md.ASIN, _ = d.ASIN()
	md.Language, _ = d.Language()
	return md
}
