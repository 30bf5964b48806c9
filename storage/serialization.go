// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package storage

import (
	"fmt"
	"math"
	"time"

	"github.com/mus-format/mus-go/ord"
	"github.com/mus-format/mus-go/varint"
	"github.com/poiesic/jobstream/core"
)

// Records are encoded field by field with mus-go. Optional fields carry a presence
// flag so that an absent value and an empty value decode differently.

type encoder struct {
	buf []byte
}

func (e *encoder) put(size int, marshal func(bs []byte) int) {
	start := len(e.buf)
	e.buf = append(e.buf, make([]byte, size)...)
	marshal(e.buf[start:])
}

func (e *encoder) uint64(v uint64) {
	e.put(varint.Uint64.Size(v), func(bs []byte) int { return varint.Uint64.Marshal(v, bs) })
}

func (e *encoder) int64(v int64) {
	e.put(varint.Int64.Size(v), func(bs []byte) int { return varint.Int64.Marshal(v, bs) })
}

func (e *encoder) bool(v bool) {
	e.put(ord.Bool.Size(v), func(bs []byte) int { return ord.Bool.Marshal(v, bs) })
}

func (e *encoder) string(v string) {
	e.put(ord.String.Size(v), func(bs []byte) int { return ord.String.Marshal(v, bs) })
}

func (e *encoder) time(v time.Time) {
	e.int64(v.UnixMicro())
}

func (e *encoder) optString(v *string) {
	e.bool(v != nil)
	if v != nil {
		e.string(*v)
	}
}

func (e *encoder) optFloat(v *float64) {
	e.bool(v != nil)
	if v != nil {
		e.uint64(math.Float64bits(*v))
	}
}

func (e *encoder) optID(v *core.ID) {
	e.bool(v != nil)
	if v != nil {
		e.uint64(uint64(*v))
	}
}

func (e *encoder) strings(v []string) {
	e.uint64(uint64(len(v)))
	for _, s := range v {
		e.string(s)
	}
}

// decoder reads fields in order. The first failure sticks and every later read
// returns a zero value.
type decoder struct {
	bs  []byte
	err error
}

func (d *decoder) uint64() uint64 {
	if d.err != nil {
		return 0
	}
	v, n, err := varint.Uint64.Unmarshal(d.bs)
	if err != nil {
		d.err = err
		return 0
	}
	d.bs = d.bs[n:]
	return v
}

func (d *decoder) int64() int64 {
	if d.err != nil {
		return 0
	}
	v, n, err := varint.Int64.Unmarshal(d.bs)
	if err != nil {
		d.err = err
		return 0
	}
	d.bs = d.bs[n:]
	return v
}

func (d *decoder) bool() bool {
	if d.err != nil {
		return false
	}
	v, n, err := ord.Bool.Unmarshal(d.bs)
	if err != nil {
		d.err = err
		return false
	}
	d.bs = d.bs[n:]
	return v
}

func (d *decoder) string() string {
	if d.err != nil {
		return ""
	}
	v, n, err := ord.String.Unmarshal(d.bs)
	if err != nil {
		d.err = err
		return ""
	}
	d.bs = d.bs[n:]
	return v
}

func (d *decoder) time() time.Time {
	return time.UnixMicro(d.int64()).UTC()
}

func (d *decoder) optString() *string {
	if !d.bool() {
		return nil
	}
	v := d.string()
	return &v
}

func (d *decoder) optFloat() *float64 {
	if !d.bool() {
		return nil
	}
	v := math.Float64frombits(d.uint64())
	return &v
}

func (d *decoder) optID() *core.ID {
	if !d.bool() {
		return nil
	}
	v := core.ID(d.uint64())
	return &v
}

func (d *decoder) strings() []string {
	n := d.uint64()
	if d.err != nil || n == 0 {
		return nil
	}
	if n > uint64(len(d.bs)) {
		d.err = ErrTruncatedData
		return nil
	}
	out := make([]string, 0, n)
	for i := uint64(0); i < n && d.err == nil; i++ {
		out = append(out, d.string())
	}
	return out
}

// length guards slice counts against corrupt input: every element takes at least one byte.
func (d *decoder) length() int {
	n := d.uint64()
	if d.err != nil {
		return 0
	}
	if n > uint64(len(d.bs)) {
		d.err = ErrTruncatedData
		return 0
	}
	return int(n)
}

func (d *decoder) done(what string) error {
	if d.err != nil {
		return fmt.Errorf("%w: %s: %w", ErrSerializationFailed, what, d.err)
	}
	return nil
}

// MarshalID serializes an ID to bytes.
func MarshalID(id core.ID) []byte {
	var e encoder
	e.uint64(uint64(id))
	return e.buf
}

// UnmarshalID deserializes an ID from bytes.
func UnmarshalID(data []byte) (core.ID, error) {
	d := decoder{bs: data}
	id := core.ID(d.uint64())
	return id, d.done("id")
}

// MarshalCompany serializes a Company to bytes.
func MarshalCompany(c *core.Company) []byte {
	var e encoder
	e.uint64(uint64(c.Id))
	e.optString(c.Name)
	e.optString(c.Domain)
	e.optString(c.Industry)
	e.optString(c.Size)
	e.time(c.InsertedAt)
	e.time(c.UpdatedAt)
	return e.buf
}

// UnmarshalCompany deserializes a Company from bytes.
func UnmarshalCompany(data []byte) (*core.Company, error) {
	d := decoder{bs: data}
	c := &core.Company{
		Id:         core.ID(d.uint64()),
		Name:       d.optString(),
		Domain:     d.optString(),
		Industry:   d.optString(),
		Size:       d.optString(),
		InsertedAt: d.time(),
		UpdatedAt:  d.time(),
	}
	if err := d.done("company"); err != nil {
		return nil, err
	}
	return c, nil
}

// MarshalJob serializes a Job to bytes.
func MarshalJob(j *core.Job) []byte {
	var e encoder
	e.uint64(uint64(j.Id))
	e.optID(j.CompanyId)
	e.string(j.Title)
	e.optString(j.Description)
	e.optString(j.Location)
	e.optString(j.URL)
	e.strings(j.Qualifications)
	e.strings(j.Responsibilities)
	e.optFloat(j.SalaryMin)
	e.optFloat(j.SalaryMax)
	e.optString(j.SalaryCurrency)
	e.optString(j.Status)
	e.string(j.DedupKey)
	e.time(j.InsertedAt)
	e.time(j.UpdatedAt)
	return e.buf
}

// UnmarshalJob deserializes a Job from bytes.
func UnmarshalJob(data []byte) (*core.Job, error) {
	d := decoder{bs: data}
	j := &core.Job{
		Id:               core.ID(d.uint64()),
		CompanyId:        d.optID(),
		Title:            d.string(),
		Description:      d.optString(),
		Location:         d.optString(),
		URL:              d.optString(),
		Qualifications:   d.strings(),
		Responsibilities: d.strings(),
		SalaryMin:        d.optFloat(),
		SalaryMax:        d.optFloat(),
		SalaryCurrency:   d.optString(),
		Status:           d.optString(),
		DedupKey:         d.string(),
		InsertedAt:       d.time(),
		UpdatedAt:        d.time(),
	}
	if err := d.done("job"); err != nil {
		return nil, err
	}
	return j, nil
}

// MarshalStreamEntry serializes a JobStreamEntry to bytes.
func MarshalStreamEntry(s *core.JobStreamEntry) []byte {
	var e encoder
	e.uint64(uint64(s.Id))
	e.uint64(uint64(s.JobId))
	e.string(s.ProfileID)
	e.string(s.Source)
	e.string(s.Status)
	e.time(s.InsertedAt)
	return e.buf
}

// UnmarshalStreamEntry deserializes a JobStreamEntry from bytes.
func UnmarshalStreamEntry(data []byte) (*core.JobStreamEntry, error) {
	d := decoder{bs: data}
	s := &core.JobStreamEntry{
		Id:         core.ID(d.uint64()),
		JobId:      core.ID(d.uint64()),
		ProfileID:  d.string(),
		Source:     d.string(),
		Status:     d.string(),
		InsertedAt: d.time(),
	}
	if err := d.done("stream entry"); err != nil {
		return nil, err
	}
	return s, nil
}

// MarshalApplication serializes a JobApplication to bytes.
func MarshalApplication(a *core.JobApplication) []byte {
	var e encoder
	e.uint64(uint64(a.Id))
	e.string(a.ProfileID)
	e.uint64(uint64(a.JobId))
	e.int64(int64(a.StatusOrder))
	e.optString(a.Notes)
	e.time(a.InsertedAt)
	e.time(a.UpdatedAt)
	return e.buf
}

// UnmarshalApplication deserializes a JobApplication from bytes.
func UnmarshalApplication(data []byte) (*core.JobApplication, error) {
	d := decoder{bs: data}
	a := &core.JobApplication{
		Id:          core.ID(d.uint64()),
		ProfileID:   d.string(),
		JobId:       core.ID(d.uint64()),
		StatusOrder: int(d.int64()),
		Notes:       d.optString(),
		InsertedAt:  d.time(),
		UpdatedAt:   d.time(),
	}
	if err := d.done("application"); err != nil {
		return nil, err
	}
	return a, nil
}

// MarshalResume serializes a StructuredResume to bytes.
func MarshalResume(r *core.StructuredResume) []byte {
	var e encoder
	e.string(r.ProfileID)
	e.string(r.DocumentRef)
	data := r.Data
	e.optString(data.Name)
	e.optString(data.Email)
	e.optString(data.Phone)
	e.optString(data.Location)
	e.optString(data.Summary)
	e.strings(data.Skills)
	e.uint64(uint64(len(data.Experience)))
	for _, x := range data.Experience {
		e.optString(x.Title)
		e.optString(x.Company)
		e.optString(x.StartDate)
		e.optString(x.EndDate)
		e.strings(x.Highlights)
	}
	e.uint64(uint64(len(data.Education)))
	for _, x := range data.Education {
		e.optString(x.Institution)
		e.optString(x.Degree)
		e.optString(x.Field)
		e.optString(x.GraduationYear)
	}
	e.time(r.InsertedAt)
	e.time(r.UpdatedAt)
	return e.buf
}

// UnmarshalResume deserializes a StructuredResume from bytes.
func UnmarshalResume(data []byte) (*core.StructuredResume, error) {
	d := decoder{bs: data}
	r := &core.StructuredResume{
		ProfileID:   d.string(),
		DocumentRef: d.string(),
	}
	r.Data.Name = d.optString()
	r.Data.Email = d.optString()
	r.Data.Phone = d.optString()
	r.Data.Location = d.optString()
	r.Data.Summary = d.optString()
	r.Data.Skills = d.strings()
	if n := d.length(); n > 0 {
		r.Data.Experience = make([]core.Experience, n)
		for i := range r.Data.Experience {
			r.Data.Experience[i] = core.Experience{
				Title:      d.optString(),
				Company:    d.optString(),
				StartDate:  d.optString(),
				EndDate:    d.optString(),
				Highlights: d.strings(),
			}
		}
	}
	if n := d.length(); n > 0 {
		r.Data.Education = make([]core.Education, n)
		for i := range r.Data.Education {
			r.Data.Education[i] = core.Education{
				Institution:    d.optString(),
				Degree:         d.optString(),
				Field:          d.optString(),
				GraduationYear: d.optString(),
			}
		}
	}
	r.InsertedAt = d.time()
	r.UpdatedAt = d.time()
	if err := d.done("resume"); err != nil {
		return nil, err
	}
	return r, nil
}
