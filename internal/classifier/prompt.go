package classifier

import "fmt"

const promptTemplate = `You are a traffic forensic expert. Examine the vehicle crops in this %dx%d grid.
Each crop carries a green ID label (for example ID:123).

Rules:
1. Describe only the vehicle that fills most of the crop (the foreground vehicle).
2. Ignore background vehicles and plates visible in the distance.
3. For motorcycles and scooters, do not take a plate that belongs to a car behind them.

For each labelled vehicle return:
- track_id: the number after ID:
- plate: the foreground vehicle's licence plate, or 'NO PLATE' if it is not clearly readable
- color: primary vehicle colour
- make: make and model (for example 'Maruti Swift', 'Honda Activa')
- type: one of CAR, MOTORCYCLE, SCOOTER, BICYCLE, BUS, TRUCK, AUTO
- helmet_status: HELMET, NO_HELMET, or N/A. For MOTORCYCLE and SCOOTER mark NO_HELMET unless every rider clearly wears one.
- passengers: number of people on the vehicle (1, 2, 3, 4, 5+)
- confidence: confidence in the overall analysis, 0.0 to 1.0

Return ONLY a JSON array of objects, with no explanation:
[{"track_id": 123, "plate": "...", "color": "...", "make": "...", "type": "...", "helmet_status": "...", "passengers": 1, "confidence": 0.9}]`

// Prompt returns the batch instruction for a rows×cols collage.
func Prompt(rows, cols int) string {
	if rows <= 0 {
		rows = 3
	}
	if cols <= 0 {
		cols = 3
	}
	return fmt.Sprintf(promptTemplate, rows, cols)
}
