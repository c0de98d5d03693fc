package validators

import "go.mongodb.org/mongo-driver/bson"

var BookingValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"resource_id",
			"slot_start",
			"client_id",
			"status",
			"amount_cents",
			"currency",
			"hold_expires_at",
			"created_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			// UUID v4
			"_id": bson.M{
				"bsonType":  "string",
				"minLength": 36,
				"maxLength": 36,
			},

			"resource_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 64,
			},

			"slot_start": bson.M{
				"bsonType": "date",
			},

			"client_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 64,
			},

			"status": bson.M{
				"bsonType": "string",
				"enum": []string{
					"pending_payment",
					"authorized",
					"paid",
					"failed",
					"expired",
					"cancelled",
				},
			},

			"payment_ref": bson.M{
				"bsonType": "string",
			},

			"amount_cents": bson.M{
				"bsonType": []string{"long", "int"},
				"minimum":  50,
			},

			"currency": bson.M{
				"bsonType":  "string",
				"minLength": 3,
				"maxLength": 3,
			},

			"note": bson.M{
				"bsonType":  "string",
				"maxLength": 500,
			},

			"hold_expires_at": bson.M{
				"bsonType": "date",
			},

			"created_at": bson.M{
				"bsonType": "date",
			},

			"updated_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
