package storage

import (
	"fmt"
	"strings"
)

// likeEscape is accepted by sqlite, postgres and mysql alike. A backslash
// would need different quoting on each.
const likeEscape = "!"

// BuildWhere translates predicates into a WHERE clause body with "?"
// placeholders and the matching bound arguments. Column names come from the
// schema; values are only ever bound. No predicates yields an empty clause.
func BuildWhere(schema Schema, preds []Predicate) (string, []any, error) {
	if err := ValidatePredicates(schema, preds); err != nil {
		return "", nil, err
	}
	clauses := make([]string, 0, len(preds))
	args := make([]any, 0, len(preds))
	for _, p := range preds {
		col, _ := schema.Column(p.Field)
		switch p.Op {
		case Equals:
			clauses = append(clauses, col.Name+" = ?")
			args = append(args, p.Value)
		case Contains:
			clauses = append(clauses, col.Name+" LIKE ? ESCAPE '"+likeEscape+"'")
			args = append(args, "%"+escapeLike(fmt.Sprint(p.Value))+"%")
		}
	}
	return strings.Join(clauses, " AND "), args, nil
}

var likeReplacer = strings.NewReplacer(
	likeEscape, likeEscape+likeEscape,
	"%", likeEscape+"%",
	"_", likeEscape+"_",
)

func escapeLike(s string) string {
	return likeReplacer.Replace(s)
}
