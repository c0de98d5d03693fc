package validators

import "go.mongodb.org/mongo-driver/bson"

var PaymentEventValidator = bson.M{
	"$jsonSchema": bson.M{
		"bsonType": "object",
		"required": []string{
			"payment_ref",
			"type",
			"received_at",
		},
		"additionalProperties": true,

		"properties": bson.M{
			// Gateway event id; the unique _id index is the dedup guard
			"_id": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 128,
			},

			"payment_ref": bson.M{
				"bsonType":  "string",
				"minLength": 1,
				"maxLength": 128,
			},

			"type": bson.M{
				"bsonType":  "string",
				"maxLength": 128,
			},

			"received_at": bson.M{
				"bsonType": "date",
			},
		},
	},
}
