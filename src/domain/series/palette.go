package series

var palette = []string{
	"#e6194b", "#3cb44b", "#4363d8", "#f58231", "#911eb4",
	"#42d4f4", "#f032e6", "#bfef45", "#469990", "#9a6324",
}

// ColorFor assigns a stable line colour from a player's join order.
func ColorFor(order int) string {
	if order < 0 {
		order = -order
	}
	return palette[order%len(palette)]
}
