package monday

import (
	"fmt"
	"strings"
)

const itemsPageQuery = `query ($boardIds: [ID!], $limit: Int!, $cursor: String, $columnIds: [String!]) {
  boards(ids: $boardIds) {
    id
    items_page(limit: $limit, cursor: $cursor) {
      cursor
      items {
        id
        name
        column_values(ids: $columnIds) {
          id
          value
          text
        }
      }
    }
  }
}`

// updateAlias names the mutation field for the i-th update of a batch.
func updateAlias(i int) string {
	return fmt.Sprintf("u%d", i)
}

// buildUpdateMutation returns a mutation with one aliased
// change_multiple_column_values field per item. Item IDs and values are
// passed as variables $item<i> and $values<i>.
func buildUpdateMutation(n int) string {
	var params, fields strings.Builder

	params.WriteString("$boardId: ID!")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&params, ", $item%d: ID!, $values%d: JSON!", i, i)
		fmt.Fprintf(&fields, "  %s: change_multiple_column_values(board_id: $boardId, item_id: $item%d, column_values: $values%d) {\n    id\n  }\n", updateAlias(i), i, i)
	}

	return "mutation (" + params.String() + ") {\n" + fields.String() + "}"
}
