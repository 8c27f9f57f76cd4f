package driver

// Cypher for the TimeNode graph. Each node links to its parent through a
// PREVIOUS edge; the Scenario vertex holds the active pointer.
const (
	InsertTimeNodeQuery = `
		OPTIONAL MATCH (parent:TimeNode {id: $parent_id})
		CREATE (n:TimeNode {
			id: $id,
			scenario_id: $scenario_id,
			timestep: $timestep,
			summary: $summary,
			data: $data,
			created_at: $created_at
		})
		MERGE (s:Scenario {id: $scenario_id})
		SET s.node_id = n.id, s.last_updated = $created_at
		WITH n, parent
		FOREACH (p IN CASE WHEN parent IS NULL THEN [] ELSE [parent] END | CREATE (n)-[:PREVIOUS]->(p))
		RETURN n.id AS id
	`

	GetActiveNodeQuery = `
		MATCH (s:Scenario {id: $scenario_id})
		MATCH (n:TimeNode {id: s.node_id})
		RETURN n.data AS data
	`

	GetTimeNodeQuery = `
		MATCH (n:TimeNode {id: $id})
		RETURN n.data AS data
	`

	SetActiveNodeQuery = `
		MATCH (n:TimeNode {id: $node_id, scenario_id: $scenario_id})
		MERGE (s:Scenario {id: $scenario_id})
		SET s.node_id = n.id, s.last_updated = $last_updated
		RETURN n.id AS id
	`

	ListTimeNodesQuery = `
		MATCH (n:TimeNode {scenario_id: $scenario_id})
		RETURN n.data AS data
		ORDER BY n.timestep, n.created_at
	`

	ListGamesQuery = `
		MATCH (s:Scenario)
		MATCH (n:TimeNode {id: s.node_id})
		RETURN s.id AS scenario_id, s.last_updated AS last_updated, n.data AS data
		ORDER BY s.last_updated DESC, s.id
	`

	DeleteGameQuery = `
		OPTIONAL MATCH (n:TimeNode {scenario_id: $scenario_id})
		WITH collect(n) AS nodes
		OPTIONAL MATCH (s:Scenario {id: $scenario_id})
		WITH nodes, collect(s) AS scenarios
		FOREACH (x IN scenarios | DETACH DELETE x)
		FOREACH (x IN nodes | DETACH DELETE x)
		RETURN size(nodes) AS deleted
	`

	ListChildrenQuery = `
		MATCH (c:TimeNode)-[:PREVIOUS]->(:TimeNode {id: $id})
		RETURN c.id AS id
		ORDER BY c.created_at
	`
)
