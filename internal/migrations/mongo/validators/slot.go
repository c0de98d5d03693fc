package validators

import "go.mongodb.org/mongo-driver/bson"

var SlotValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"resource_id",
			"slot_start",
			"status",
			"updated_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			// "<resource_id>|<RFC3339 slot start>"
			"_id": bson.M{
				"bsonType": "string",
			},

			"resource_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 64,
			},

			"slot_start": bson.M{
				"bsonType": "date",
			},

			"status": bson.M{
				"bsonType": "string",
				"enum": []string{
					"open",
					"held",
					"booked",
				},
			},

			"hold_expires_at": bson.M{
				"bsonType": "date",
			},

			"held_by_booking_id": bson.M{
				"bsonType": "string",
			},

			"updated_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
