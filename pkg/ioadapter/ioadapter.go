// Package ioadapter implements the two external collaborators
// spec.md treats as out-of-core: the input parser that materializes
// the initial document matrix, and the chunked dispatch/gather wire
// protocol that hands each worker its slice and collects the final
// assignments back. Grounded on the teacher's line-oriented
// pkg/ingest reader, adapted from a JSONL vector stream to the
// whitespace-delimited header+lines format this spec defines, and
// instrumented with a schollz/progressbar/v3 bar the way the
// teacher's sync command reports upload progress.
package ioadapter

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/Siddhant-K-code/cabinets/pkg/cabinetserr"
	"github.com/Siddhant-K-code/cabinets/pkg/collective"
	"github.com/Siddhant-K-code/cabinets/pkg/partition"
	"github.com/Siddhant-K-code/cabinets/pkg/types"
	"github.com/schollz/progressbar/v3"
)

const (
	dispatchTag = 1
	gatherTag   = 2
)

// Header is the parsed first line of the input file: "<C_default>
// <D> <S>".
type Header struct {
	DefaultCabinets int
	Documents       int
	Subjects        int
}

// ParseHeader parses the header line.
func ParseHeader(line string) (Header, error) {
	fields := strings.Fields(line)
	if len(fields) != 3 {
		return Header{}, fmt.Errorf("%w: header must have 3 fields, got %d", cabinetserr.ErrInputMalformed, len(fields))
	}
	c, errC := strconv.Atoi(fields[0])
	d, errD := strconv.Atoi(fields[1])
	s, errS := strconv.Atoi(fields[2])
	if errC != nil || errD != nil || errS != nil {
		return Header{}, fmt.Errorf("%w: header fields must be integers", cabinetserr.ErrInputMalformed)
	}
	if c == 0 || s == 0 {
		return Header{}, fmt.Errorf("%w: C and S must be non-zero", cabinetserr.ErrConfigInvalid)
	}
	return Header{DefaultCabinets: c, Documents: d, Subjects: s}, nil
}

// ParseDocumentLine parses one "<doc_id> <s_0> ... <s_{S-1}>" line.
func ParseDocumentLine(line string, subjects int) (types.Document, error) {
	fields := strings.Fields(line)
	if len(fields) < subjects+1 {
		return types.Document{}, fmt.Errorf("%w: document line has %d tokens, need at least %d", cabinetserr.ErrInputMalformed, len(fields), subjects+1)
	}
	id, err := strconv.Atoi(fields[0])
	if err != nil {
		return types.Document{}, fmt.Errorf("%w: document id %q is not an integer", cabinetserr.ErrInputMalformed, fields[0])
	}
	subjectValues := make([]float64, subjects)
	for i := 0; i < subjects; i++ {
		v, err := strconv.ParseFloat(fields[i+1], 64)
		if err != nil {
			return types.Document{}, fmt.Errorf("%w: subject %d of document %d is not a float", cabinetserr.ErrInputMalformed, i, id)
		}
		subjectValues[i] = v
	}
	return types.Document{ID: id, Subjects: subjectValues}, nil
}

// formatDocumentLine is the inverse of ParseDocumentLine, used to
// build dispatch chunk payloads.
func formatDocumentLine(d types.Document) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d", d.ID)
	for _, v := range d.Subjects {
		fmt.Fprintf(&b, " %s", strconv.FormatFloat(v, 'g', -1, 64))
	}
	return b.String()
}

// ReadAll parses the header and every document line from r, seeding
// each document's initial cabinet via the partitioner rule
// (doc id mod C).
func ReadAll(r io.Reader, cabinets int) (Header, []types.Document, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	if !scanner.Scan() {
		return Header{}, nil, fmt.Errorf("%w: empty input", cabinetserr.ErrInputMalformed)
	}
	header, err := ParseHeader(scanner.Text())
	if err != nil {
		return Header{}, nil, err
	}

	docs := make([]types.Document, 0, header.Documents)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		doc, err := ParseDocumentLine(line, header.Subjects)
		if err != nil {
			return Header{}, nil, err
		}
		doc.Assigned = partition.InitialCabinet(doc.ID, cabinets)
		docs = append(docs, doc)
	}
	if err := scanner.Err(); err != nil {
		return Header{}, nil, fmt.Errorf("%w: %v", cabinetserr.ErrInputMalformed, err)
	}
	return header, docs, nil
}

// NewProgressBar builds the dispatch/gather progress bar the
// coordinator renders to stderr, matching the teacher's sync command
// options (spinner, throughput, full width).
func NewProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("docs"),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetRenderBlankState(true),
	)
}

// Dispatch splits docs into W contiguous blocks per plan and sends
// each non-coordinator worker its block as two messages (byte length,
// then bytes); the coordinator keeps its own block without using the
// collective layer. Only the caller at rank 0 should invoke Dispatch;
// non-coordinator ranks call Receive instead.
func Dispatch(ctx context.Context, backend collective.Backend, docs []types.Document, plan partition.Plan, bar *progressbar.ProgressBar) ([]types.Document, error) {
	var mine []types.Document
	for rank := 0; rank < backend.Size(); rank++ {
		offset := plan.Offset(rank)
		count := plan.Count(rank)
		block := docs[offset : offset+count]

		if rank == backend.Rank() {
			mine = append([]types.Document(nil), block...)
			if bar != nil {
				_ = bar.Add(count)
			}
			continue
		}

		payload := serializeBlock(block)
		if err := backend.Send(ctx, encodeLength(len(payload)), rank, dispatchTag); err != nil {
			return nil, fmt.Errorf("%w: dispatch length to rank %d: %v", cabinetserr.ErrCollectiveFailed, rank, err)
		}
		if err := backend.Send(ctx, payload, rank, dispatchTag); err != nil {
			return nil, fmt.Errorf("%w: dispatch chunk to rank %d: %v", cabinetserr.ErrCollectiveFailed, rank, err)
		}
		if bar != nil {
			_ = bar.Add(count)
		}
	}
	return mine, nil
}

// Receive blocks until the coordinator's two dispatch messages arrive
// and returns this worker's parsed block, with each document's initial
// cabinet seeded per the partitioner rule.
func Receive(ctx context.Context, backend collective.Backend, subjects, cabinets int) ([]types.Document, error) {
	lengthBuf, err := backend.Recv(ctx, coordinatorRank, dispatchTag)
	if err != nil {
		return nil, fmt.Errorf("%w: receive chunk length: %v", cabinetserr.ErrCollectiveFailed, err)
	}
	_ = decodeLength(lengthBuf)

	payload, err := backend.Recv(ctx, coordinatorRank, dispatchTag)
	if err != nil {
		return nil, fmt.Errorf("%w: receive chunk bytes: %v", cabinetserr.ErrCollectiveFailed, err)
	}
	return deserializeBlock(payload, subjects, cabinets)
}

// Gather collects every worker's final assignments at the coordinator
// and writes one "<doc_id> <cabinet>" line per document to out, the
// coordinator's own block first, followed by each remote worker's
// block in worker-index order.
func Gather(ctx context.Context, backend collective.Backend, own []types.Assignment, out io.Writer, bar *progressbar.ProgressBar) error {
	if backend.Rank() != coordinatorRank {
		payload := serializeAssignments(own)
		if err := backend.Send(ctx, encodeLength(len(payload)), coordinatorRank, gatherTag); err != nil {
			return fmt.Errorf("%w: gather length: %v", cabinetserr.ErrCollectiveFailed, err)
		}
		if err := backend.Send(ctx, payload, coordinatorRank, gatherTag); err != nil {
			return fmt.Errorf("%w: gather chunk: %v", cabinetserr.ErrCollectiveFailed, err)
		}
		return nil
	}

	if err := writeAssignments(out, own); err != nil {
		return fmt.Errorf("%w: %v", cabinetserr.ErrOutputWriteFailed, err)
	}
	if bar != nil {
		_ = bar.Add(len(own))
	}

	for rank := 1; rank < backend.Size(); rank++ {
		if _, err := backend.Recv(ctx, rank, gatherTag); err != nil {
			return fmt.Errorf("%w: gather length from rank %d: %v", cabinetserr.ErrCollectiveFailed, rank, err)
		}
		payload, err := backend.Recv(ctx, rank, gatherTag)
		if err != nil {
			return fmt.Errorf("%w: gather chunk from rank %d: %v", cabinetserr.ErrCollectiveFailed, rank, err)
		}
		assignments, err := deserializeAssignments(payload)
		if err != nil {
			return fmt.Errorf("%w: %v", cabinetserr.ErrInputMalformed, err)
		}
		if err := writeAssignments(out, assignments); err != nil {
			return fmt.Errorf("%w: %v", cabinetserr.ErrOutputWriteFailed, err)
		}
		if bar != nil {
			_ = bar.Add(len(assignments))
		}
	}
	return nil
}

const coordinatorRank = 0

func serializeBlock(docs []types.Document) []byte {
	var buf bytes.Buffer
	for _, d := range docs {
		buf.WriteString(formatDocumentLine(d))
		buf.WriteByte('\n')
	}
	return buf.Bytes()
}

func deserializeBlock(payload []byte, subjects, cabinets int) ([]types.Document, error) {
	scanner := bufio.NewScanner(bytes.NewReader(payload))
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	var docs []types.Document
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		doc, err := ParseDocumentLine(line, subjects)
		if err != nil {
			return nil, err
		}
		doc.Assigned = partition.InitialCabinet(doc.ID, cabinets)
		docs = append(docs, doc)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return docs, nil
}

func serializeAssignments(assignments []types.Assignment) []byte {
	var buf bytes.Buffer
	for _, a := range assignments {
		fmt.Fprintf(&buf, "%d %d\n", a.DocID, a.Cabinet)
	}
	return buf.Bytes()
}

func deserializeAssignments(payload []byte) ([]types.Assignment, error) {
	scanner := bufio.NewScanner(bytes.NewReader(payload))
	var out []types.Assignment
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, fmt.Errorf("assignment line %q: expected 2 fields", line)
		}
		docID, err1 := strconv.Atoi(fields[0])
		cabinet, err2 := strconv.Atoi(fields[1])
		if err1 != nil || err2 != nil {
			return nil, fmt.Errorf("assignment line %q: non-integer field", line)
		}
		out = append(out, types.Assignment{DocID: docID, Cabinet: cabinet})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func writeAssignments(out io.Writer, assignments []types.Assignment) error {
	w := bufio.NewWriter(out)
	for _, a := range assignments {
		if _, err := fmt.Fprintf(w, "%d %d\n", a.DocID, a.Cabinet); err != nil {
			return err
		}
	}
	return w.Flush()
}

func encodeLength(n int) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(n))
	return buf
}

func decodeLength(buf []byte) int {
	return int(binary.BigEndian.Uint64(buf))
}
