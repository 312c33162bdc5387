package planner

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
)

// Fingerprint returns a short stable digest of the plan's rendered shape,
// covering the root query and every batch query but not argument values.
// Inputs that render the same SQL share a fingerprint, making it a useful
// log correlation key across requests.
func Fingerprint(plan *Plan) (string, error) {
	hash := sha256.New()
	if err := fingerprintPlan(hash, plan); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil))[:16], nil
}

func fingerprintPlan(w io.Writer, plan *Plan) error {
	rendered, err := Render(plan)
	if err != nil {
		return err
	}
	writePart(w, plan.Model.Name)
	writePart(w, rendered.SQL)
	for _, bp := range plan.Batches {
		writePart(w, bp.ParentPath)
		writePart(w, bp.Relation.Name)
		writePart(w, string(bp.Strategy))
		if err := fingerprintPlan(w, bp.Query); err != nil {
			return err
		}
	}
	return nil
}

// writePart frames each component with its length so adjacent parts can
// never collide.
func writePart(w io.Writer, part string) {
	fmt.Fprintf(w, "%d:%s|", len(part), part)
}
